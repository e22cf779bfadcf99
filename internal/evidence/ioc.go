package evidence

import "regexp"

var (
	urlPattern   = regexp.MustCompile(`https?://[^\s)\]}'"<>]+`)
	ipv4Pattern  = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\.){3}(?:25[0-5]|2[0-4]\d|1\d{2}|[1-9]?\d)\b`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9.-]+`)
)

// IOCs are the indicators found in one text blob, each list in first-seen order
// without duplicates.
type IOCs struct {
	URLs   []string `json:"urls"`
	IPs    []string `json:"ips"`
	Emails []string `json:"emails"`
}

// Count returns the total number of indicators.
func (i IOCs) Count() int {
	return len(i.URLs) + len(i.IPs) + len(i.Emails)
}

// ExtractIOCs applies the URL, IPv4 and email matchers to text.
func ExtractIOCs(text string) IOCs {
	return IOCs{
		URLs:   uniqueMatches(urlPattern, text),
		IPs:    uniqueMatches(ipv4Pattern, text),
		Emails: uniqueMatches(emailPattern, text),
	}
}

func uniqueMatches(re *regexp.Regexp, text string) []string {
	set := newOrderedSet()
	for _, m := range re.FindAllString(text, -1) {
		set.Add(m)
	}
	return set.Items()
}

// orderedSet keeps the first occurrence of each string, in insertion order.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{items: []string{}, seen: make(map[string]struct{})}
}

// Add reports whether s was new.
func (s *orderedSet) Add(v string) bool {
	if _, ok := s.seen[v]; ok {
		return false
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
	return true
}

func (s *orderedSet) Len() int { return len(s.items) }

func (s *orderedSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
