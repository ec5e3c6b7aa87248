package model

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Instrument maps an NSE trading symbol to its broker instrument token.
type Instrument struct {
	Symbol string `json:"symbol"` // uppercase trading symbol, e.g. "RELIANCE"
	Token  string `json:"token"`  // Kite instrument token
}

// Universe is the injected set of instruments the system tracks.
// It is loaded at startup and passed into ingestion and the orchestrator;
// nothing in the core reads a package-level symbol table.
type Universe struct {
	instruments []Instrument
	bySymbol    map[string]Instrument
}

// NewUniverse builds a universe from a list of instruments.
// Symbols are uppercased; duplicates keep the first occurrence.
func NewUniverse(instruments []Instrument) *Universe {
	u := &Universe{bySymbol: make(map[string]Instrument, len(instruments))}
	for _, in := range instruments {
		in.Symbol = strings.ToUpper(in.Symbol)
		if _, dup := u.bySymbol[in.Symbol]; dup {
			continue
		}
		u.bySymbol[in.Symbol] = in
		u.instruments = append(u.instruments, in)
	}
	return u
}

// LoadUniverse reads a universe from a JSON file: [{"symbol":..., "token":...}, ...].
// An empty path returns the built-in Nifty 50 universe.
func LoadUniverse(path string) (*Universe, error) {
	if path == "" {
		return NewUniverse(nifty50), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("universe file: %w", err)
	}
	var instruments []Instrument
	if err := json.Unmarshal(data, &instruments); err != nil {
		return nil, fmt.Errorf("universe file %s: %w", path, err)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("universe file %s: no instruments", path)
	}
	return NewUniverse(instruments), nil
}

// Symbols returns the tracked symbols in sorted order.
func (u *Universe) Symbols() []string {
	out := make([]string, 0, len(u.instruments))
	for _, in := range u.instruments {
		out = append(out, in.Symbol)
	}
	sort.Strings(out)
	return out
}

// Instruments returns the tracked instruments in load order.
func (u *Universe) Instruments() []Instrument {
	out := make([]Instrument, len(u.instruments))
	copy(out, u.instruments)
	return out
}

// Token returns the instrument token for a symbol, or "" if untracked.
func (u *Universe) Token(symbol string) string {
	return u.bySymbol[strings.ToUpper(symbol)].Token
}

// Contains reports whether the symbol is part of the universe.
func (u *Universe) Contains(symbol string) bool {
	_, ok := u.bySymbol[strings.ToUpper(symbol)]
	return ok
}

// Size returns the number of tracked instruments.
func (u *Universe) Size() int { return len(u.instruments) }

// nifty50 is the default universe: Nifty 50 constituents with their
// Kite instrument tokens (NSE).
var nifty50 = []Instrument{
	{"RELIANCE", "738561"}, {"TCS", "2953217"}, {"HDFCBANK", "341249"},
	{"INFY", "408065"}, {"ICICIBANK", "1270529"}, {"HINDUNILVR", "356865"},
	{"ITC", "424961"}, {"SBIN", "779521"}, {"BHARTIARTL", "2714625"},
	{"KOTAKBANK", "492033"}, {"ASIANPAINT", "60417"}, {"LT", "2939649"},
	{"AXISBANK", "1510401"}, {"MARUTI", "2815745"}, {"SUNPHARMA", "857857"},
	{"TITAN", "897537"}, {"ULTRACEMCO", "2952193"}, {"NESTLEIND", "4598529"},
	{"WIPRO", "969473"}, {"HCLTECH", "1850625"}, {"BAJFINANCE", "81153"},
	{"TECHM", "3465729"}, {"NTPC", "2977281"}, {"POWERGRID", "3834113"},
	{"TATAMOTORS", "884737"}, {"COALINDIA", "5215745"}, {"TATASTEEL", "895745"},
	{"BAJAJFINSV", "4268801"}, {"HDFCLIFE", "119553"}, {"ONGC", "633601"},
	{"M&M", "519937"}, {"SBILIFE", "5582849"}, {"JSWSTEEL", "3001089"},
	{"BRITANNIA", "140033"}, {"GRASIM", "315393"}, {"DRREDDY", "225537"},
	{"CIPLA", "177665"}, {"EICHERMOT", "232961"}, {"ADANIENT", "6401"},
	{"APOLLOHOSP", "41729"}, {"DIVISLAB", "2800641"}, {"INDUSINDBK", "1346049"},
	{"HINDALCO", "348929"}, {"HEROMOTOCO", "345089"}, {"TATACONSUM", "878593"},
	{"BPCL", "134657"}, {"LTIM", "11483906"}, {"ADANIPORTS", "3861249"},
	{"UPL", "2889473"}, {"BAJAJ-AUTO", "78081"},
}
