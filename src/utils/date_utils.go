package utils

import "time"

// DutchDateFormat is the DD-MM-YYYY layout used by DeGiro exports and the
// filing document.
const DutchDateFormat = "02-01-2006"

// ISODateFormat is the YYYY-MM-DD layout transactions are stored with.
const ISODateFormat = "2006-01-02"

// FormatDutchDate renders a date as DD-MM-YYYY.
func FormatDutchDate(t time.Time) string {
	return t.Format(DutchDateFormat)
}
