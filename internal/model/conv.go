package model

import "strconv"

// Rupees converts paise to a float64 rupee value for API responses and logs.
// Stored arithmetic always stays in integer paise.
func Rupees(paise int64) float64 {
	return float64(paise) / 100.0
}

// RupeesPtr converts a nullable paise value; nil stays nil.
func RupeesPtr(paise *int64) *float64 {
	if paise == nil {
		return nil
	}
	r := Rupees(*paise)
	return &r
}

// Percent converts basis points to a float64 percentage.
func Percent(bps int64) float64 {
	return float64(bps) / 100.0
}

// FormatPaise renders paise as a "1234.56" rupee string.
func FormatPaise(paise int64) string {
	neg := paise < 0
	if neg {
		paise = -paise
	}
	s := strconv.FormatInt(paise/100, 10) + "." + pad2(paise%100)
	if neg {
		return "-" + s
	}
	return s
}

func pad2(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
