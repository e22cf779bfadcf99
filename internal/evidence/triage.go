package evidence

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxXref is the default upper bound of the triage scan.
const DefaultMaxXref = 200

var scriptActionPattern = regexp.MustCompile(`/js\b`)

// Classification is the triage verdict for one raw object.
type Classification struct {
	Script     bool
	Attachment bool
}

// Flagged reports whether any risk signature matched.
func (c Classification) Flagged() bool {
	return c.Script || c.Attachment
}

// Classify matches the lowercased raw text of an object against the script
// and embedded-file signatures.
func Classify(raw string) Classification {
	lower := strings.ToLower(raw)
	return Classification{
		Script:     strings.Contains(lower, "/javascript") || scriptActionPattern.MatchString(lower),
		Attachment: strings.Contains(lower, "/embeddedfile"),
	}
}

// SuspiciousObjects lists flagged object indices in scan order. An index may
// appear in both lists.
type SuspiciousObjects struct {
	JavaScript   []int `json:"javascript_xrefs"`
	EmbeddedFile []int `json:"embeddedfile_xrefs"`
}

// TriageInfo discloses how much of the object table was examined.
type TriageInfo struct {
	MaxXref        int  `json:"max_xref"`
	ObjectCount    int  `json:"object_count"`
	ScannedThrough int  `json:"scanned_through"`
	Bounded        bool `json:"bounded"`
	Unreadable     int  `json:"unreadable"`
}

// FlaggedObject is a raw object that matched at least one signature.
type FlaggedObject struct {
	Index int
	Raw   string
	Classification
}

// TriageResult is the outcome of a bounded scan.
type TriageResult struct {
	Info       TriageInfo
	Suspicious SuspiciousObjects
	Flagged    []FlaggedObject
	Failures   []*ItemFailure
}

// Triage scans objects 1..min(maxXref, store.ObjectCount()). Objects that
// fail to decode are recorded as failures and skipped.
func Triage(store ObjectStore, maxXref int) TriageResult {
	if maxXref < 1 {
		maxXref = DefaultMaxXref
	}
	count := store.ObjectCount()
	limit := min(maxXref, count)

	res := TriageResult{
		Info: TriageInfo{
			MaxXref:        maxXref,
			ObjectCount:    count,
			ScannedThrough: max(limit, 0),
			Bounded:        count > maxXref,
		},
		Suspicious: SuspiciousObjects{JavaScript: []int{}, EmbeddedFile: []int{}},
	}

	for i := 1; i <= limit; i++ {
		raw, err := rawObject(store, i)
		if err != nil {
			res.Info.Unreadable++
			res.Failures = append(res.Failures, &ItemFailure{Stage: StageTriage, Xref: i, Err: err})
			continue
		}

		c := Classify(raw)
		if !c.Flagged() {
			continue
		}
		if c.Script {
			res.Suspicious.JavaScript = append(res.Suspicious.JavaScript, i)
		}
		if c.Attachment {
			res.Suspicious.EmbeddedFile = append(res.Suspicious.EmbeddedFile, i)
		}
		res.Flagged = append(res.Flagged, FlaggedObject{Index: i, Raw: raw, Classification: c})
	}

	return res
}

// rawObject isolates a single object decode from provider panics.
func rawObject(store ObjectStore, i int) (raw string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("decode panic: %v", r)
		}
	}()
	return store.RawObject(i)
}

// objectDumpPath is the case-relative path of a flagged object's dump.
func objectDumpPath(index int) string {
	return fmt.Sprintf("%s/xref_%d.txt", objectDumpsDir, index)
}
