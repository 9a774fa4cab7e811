package ingestion

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"optionforge/internal/domain"
)

// CSVOptions fills fields a vendor export leaves out.
type CSVOptions struct {
	Ticker string      // used when the file has no ticker column
	Date   domain.Date // used when the file has no quote date column
}

// column names after normalization, keyed by the field they feed
var columnAliases = map[string][]string{
	"date":       {"date", "datadate", "quotedate", "tradedate"},
	"ticker":     {"underlyingticker", "ticker", "underlying", "root"},
	"expiration": {"expirationdate", "expiration", "expiry", "exp"},
	"strike":     {"strikeprice", "strike"},
	"type":       {"optiontype", "type", "callput", "putcall"},
	"contract":   {"contractsymbol", "contract", "optionsymbol"},
	"bid":        {"bid"},
	"ask":        {"ask"},
	"last":       {"lastprice", "last"},
	"volume":     {"volume"},
	"oi":         {"openinterest", "oi"},
	"iv":         {"impliedvolatility", "iv"},
	"delta":      {"delta"},
	"gamma":      {"gamma"},
	"theta":      {"theta"},
	"vega":       {"vega"},
}

// OCC style symbols carry the side right after the expiry digits: SPY240119C00470000.
var contractSide = regexp.MustCompile(`\d([CP])\d`)

// ParseQuotesCSV reads option quotes from r. Columns are matched by header
// name, case-insensitively and ignoring underscores and spaces, so both
// snake_case exports and camelCase vendor dumps load.
func ParseQuotesCSV(r io.Reader, opts CSVOptions) ([]*domain.OptionQuote, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := mapColumns(header)

	if _, ok := cols["strike"]; !ok {
		return nil, fmt.Errorf("missing strike column")
	}
	if _, ok := cols["expiration"]; !ok {
		return nil, fmt.Errorf("missing expiration column")
	}
	_, hasType := cols["type"]
	_, hasContract := cols["contract"]
	if !hasType && !hasContract {
		return nil, fmt.Errorf("missing option type or contract symbol column")
	}
	if _, ok := cols["ticker"]; !ok && opts.Ticker == "" {
		return nil, fmt.Errorf("no ticker column and no default ticker")
	}
	if _, ok := cols["date"]; !ok && opts.Date.IsZero() {
		return nil, fmt.Errorf("no date column and no default date")
	}

	var quotes []*domain.OptionQuote
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if blankRecord(record) {
			continue
		}
		q, err := parseRow(record, cols, opts)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func parseRow(record []string, cols map[string]int, opts CSVOptions) (*domain.OptionQuote, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	q := &domain.OptionQuote{
		UnderlyingTicker: strings.ToUpper(field("ticker")),
		Date:             opts.Date,
	}
	if q.UnderlyingTicker == "" {
		q.UnderlyingTicker = strings.ToUpper(opts.Ticker)
	}

	var err error
	if s := field("date"); s != "" {
		if q.Date, err = parseCSVDate(s); err != nil {
			return nil, err
		}
	}
	if q.Expiration, err = parseCSVDate(field("expiration")); err != nil {
		return nil, err
	}
	if q.Strike, err = strconv.ParseFloat(field("strike"), 64); err != nil {
		return nil, fmt.Errorf("strike %q: %w", field("strike"), err)
	}
	if q.Type, err = parseOptionType(field("type"), field("contract")); err != nil {
		return nil, err
	}

	prices := []struct {
		name string
		dst  *float64
	}{
		{"bid", &q.Bid}, {"ask", &q.Ask}, {"last", &q.Last}, {"iv", &q.ImpliedVolatility},
	}
	for _, p := range prices {
		v, ok, err := parseNumber(field(p.name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		if ok {
			*p.dst = v
		}
	}

	counts := []struct {
		name string
		dst  *int64
	}{
		{"volume", &q.Volume}, {"oi", &q.OpenInterest},
	}
	for _, c := range counts {
		v, ok, err := parseNumber(field(c.name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.name, err)
		}
		if ok {
			*c.dst = int64(v)
		}
	}

	greeks := []struct {
		name string
		dst  **float64
	}{
		{"delta", &q.Delta}, {"gamma", &q.Gamma}, {"theta", &q.Theta}, {"vega", &q.Vega},
	}
	for _, g := range greeks {
		v, ok, err := parseNumber(field(g.name))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", g.name, err)
		}
		if ok {
			*g.dst = domain.Float(v)
		}
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func mapColumns(header []string) map[string]int {
	normalized := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.NewReplacer("_", "", " ", "", "-", "").Replace(key)
		key = strings.TrimPrefix(key, "\ufeff")
		if _, dup := normalized[key]; !dup {
			normalized[key] = i
		}
	}

	cols := make(map[string]int)
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			if i, ok := normalized[alias]; ok {
				cols[field] = i
				break
			}
		}
	}
	return cols
}

// parseCSVDate accepts ISO dates and timestamps that start with one.
func parseCSVDate(s string) (domain.Date, error) {
	if len(s) > len(domain.DateLayout) {
		s = s[:len(domain.DateLayout)]
	}
	return domain.ParseDate(s)
}

func parseOptionType(typ, contract string) (domain.OptionType, error) {
	switch strings.ToLower(typ) {
	case "call", "c":
		return domain.OptionTypeCall, nil
	case "put", "p":
		return domain.OptionTypePut, nil
	case "":
	default:
		return "", fmt.Errorf("unknown option type %q", typ)
	}

	m := contractSide.FindStringSubmatch(strings.ToUpper(contract))
	if m == nil {
		return "", fmt.Errorf("cannot infer option type from contract %q", contract)
	}
	if m[1] == "C" {
		return domain.OptionTypeCall, nil
	}
	return domain.OptionTypePut, nil
}

// parseNumber treats empty and NaN cells as missing.
func parseNumber(s string) (float64, bool, error) {
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false, nil
	}
	return v, true, nil
}

func blankRecord(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

func fileExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

// ParseClosesCSV reads underlying closes from a ticker,date,close file.
// A file without a ticker column takes defaultTicker.
func ParseClosesCSV(r io.Reader, defaultTicker string) ([]*domain.UnderlyingClose, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateCol, okDate := idx["date"]
	closeCol, okClose := idx["close"]
	if !okClose {
		closeCol, okClose = idx["adj close"]
	}
	if !okDate || !okClose {
		return nil, fmt.Errorf("closes file needs date and close columns")
	}
	tickerCol, hasTicker := idx["ticker"]
	if !hasTicker && defaultTicker == "" {
		return nil, fmt.Errorf("no ticker column and no default ticker")
	}

	var closes []*domain.UnderlyingClose
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		date, err := parseCSVDate(strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(record[closeCol]), 64)
		if err != nil || price <= 0 {
			return nil, fmt.Errorf("line %d: invalid close %q", line, record[closeCol])
		}
		ticker := strings.ToUpper(defaultTicker)
		if hasTicker && strings.TrimSpace(record[tickerCol]) != "" {
			ticker = strings.ToUpper(strings.TrimSpace(record[tickerCol]))
		}
		closes = append(closes, &domain.UnderlyingClose{Ticker: ticker, Date: date, Close: price})
	}
	return closes, nil
}
