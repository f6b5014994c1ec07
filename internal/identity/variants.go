package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"passfuse/internal/textutil"
)

// Variants holds the PII fragments generators combine into candidates. Each
// slice is deduplicated and ordered from most to least characteristic.
type Variants struct {
	Names    []string
	Dates    []string
	Phones   []string
	Emails   []string
	Accounts []string
}

// Date is a parsed birth date.
type Date struct {
	Year, Month, Day int
}

var monthAbbrev = map[string]int{
	"JAN": 1, "FEB": 2, "MAR": 3, "APR": 4, "MAY": 5, "JUN": 6,
	"JUL": 7, "AUG": 8, "SEP": 9, "OCT": 10, "NOV": 11, "DEC": 12,
}

var textualDatePattern = regexp.MustCompile(`^(\d{1,2})-([A-Za-z]{3})-(\d{2,4})$`)

// ParseBirth recognizes YYYYMMDD (with or without separators) and dd-MON-yy[yy].
func ParseBirth(value string) (Date, bool) {
	value = strings.TrimSpace(value)
	if m := textualDatePattern.FindStringSubmatch(value); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, ok := monthAbbrev[strings.ToUpper(m[2])]
		if !ok {
			return Date{}, false
		}
		year, _ := strconv.Atoi(m[3])
		if len(m[3]) == 2 {
			if year >= 50 {
				year += 1900
			} else {
				year += 2000
			}
		}
		return validDate(year, month, day)
	}
	digits := textutil.Digits(value)
	if len(digits) != 8 {
		return Date{}, false
	}
	year, _ := strconv.Atoi(digits[:4])
	month, _ := strconv.Atoi(digits[4:6])
	day, _ := strconv.Atoi(digits[6:])
	return validDate(year, month, day)
}

func validDate(year, month, day int) (Date, bool) {
	if year < 1900 || year > 2100 || month < 1 || month > 12 || day < 1 || day > 31 {
		return Date{}, false
	}
	return Date{Year: year, Month: month, Day: day}, true
}

// DeriveVariants extracts the PII fragments of r.
func DeriveVariants(r Record) Variants {
	var v Variants
	v.Names = nameVariants(r.NameParts())
	if birth, ok := r.Value(FieldBirth); ok {
		v.Dates = dateVariants(birth)
	}
	if phone, ok := r.Value(FieldPhone); ok {
		v.Phones = phoneVariants(phone)
	}
	if email, ok := r.Value(FieldEmail); ok {
		v.Emails = emailVariants(email)
	}
	if account, ok := r.Value(FieldAccount); ok {
		v.Accounts = dedupe([]string{textutil.Lower(account), account})
	}
	return v
}

func nameVariants(parts []string) []string {
	if len(parts) == 0 {
		return nil
	}
	var out []string
	if len(parts) > 1 {
		first, last := parts[0], parts[len(parts)-1]
		fl, ll := textutil.Lower(first), textutil.Lower(last)
		out = append(out,
			fl+ll,
			textutil.Title(first)+textutil.Title(last),
			fl+textutil.Title(last),
			firstRune(fl)+ll,
			fl+firstRune(ll),
			ll+fl,
			initials(parts),
		)
	}
	for _, p := range parts {
		out = append(out, textutil.Lower(p), textutil.Title(p), strings.ToUpper(p))
	}
	return dedupe(out)
}

func initials(parts []string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(firstRune(textutil.Lower(p)))
	}
	return b.String()
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}

func dateVariants(birth string) []string {
	d, ok := ParseBirth(birth)
	if !ok {
		digits := textutil.Digits(birth)
		if len(digits) >= 2 {
			return []string{digits}
		}
		return nil
	}
	y := fmt.Sprintf("%04d", d.Year)
	yy := y[2:]
	mm := fmt.Sprintf("%02d", d.Month)
	dd := fmt.Sprintf("%02d", d.Day)
	return dedupe([]string{
		y, y + mm + dd, mm + dd, yy, yy + mm + dd, dd + mm, mm + dd + yy, dd + mm + yy, dd + mm + y, y + mm,
	})
}

func phoneVariants(phone string) []string {
	digits := textutil.Digits(phone)
	if len(digits) < 4 {
		return nil
	}
	out := []string{digits[len(digits)-4:]}
	if len(digits) >= 6 {
		out = append(out, digits[len(digits)-6:])
	}
	out = append(out, digits)
	return dedupe(out)
}

func emailVariants(email string) []string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || len(local) <= 2 {
		return nil
	}
	out := []string{textutil.Lower(local), local}
	if stripped := strings.Trim(textutil.Lower(stripDigits(local)), "._-"); len(stripped) > 1 {
		out = append(out, stripped, textutil.AlnumLower(stripped))
	}
	if base, _, _ := strings.Cut(domain, "."); len(base) > 2 {
		out = append(out, textutil.Lower(base))
	}
	return dedupe(out)
}

func stripDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return -1
		}
		return r
	}, s)
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
