// Package metrics provides best-effort extraction of training metrics
// from the job's log output and sinks for forwarding observations.
package metrics

import (
	"strconv"
	"strings"
)

// Update holds the fields extracted from a single log line. Any subset of
// fields may be present; a line that matches nothing yields a zero Update.
type Update struct {
	Epoch     *int
	Step      *int64
	TrainLoss *float64
	ValLoss   *float64
}

// Empty reports whether nothing was extracted.
func (u Update) Empty() bool {
	return u.Epoch == nil && u.Step == nil && u.TrainLoss == nil && u.ValLoss == nil
}

// ParseLine attempts to extract metrics from one raw output line.
//
// The assumed grammar is pipe-delimited "label: value" segments, e.g.:
//
//	Epoch 5/20 | Step 1500 | Loss: 2.345 | Val Loss: 2.567
//
// Extraction is lossy by design: malformed or partially matching segments
// are silently skipped and never produce an error, so a garbled line can
// not halt the supervision loop.
func ParseLine(line string) Update {
	var u Update

	for _, part := range strings.Split(line, "|") {
		part = strings.TrimSpace(part)
		switch {
		case strings.Contains(part, "Epoch"):
			if v, ok := parseEpoch(part); ok {
				u.Epoch = &v
			}
		case strings.Contains(part, "Step"):
			if v, ok := parseInt64After(part, "Step"); ok {
				u.Step = &v
			}
		case strings.Contains(part, "Val Loss"):
			if v, ok := parseFloatAfterColon(part); ok {
				u.ValLoss = &v
			}
		case strings.Contains(part, "Loss"):
			if v, ok := parseFloatAfterColon(part); ok {
				u.TrainLoss = &v
			}
		}
	}

	return u
}

// parseEpoch extracts N from a segment like "Epoch 5/20".
func parseEpoch(part string) (int, bool) {
	fields := strings.Fields(part)
	for i, f := range fields {
		if f != "Epoch" || i+1 >= len(fields) {
			continue
		}
		numerator := strings.SplitN(fields[i+1], "/", 2)[0]
		v, err := strconv.Atoi(numerator)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// parseInt64After extracts N from a segment like "Step 1500".
func parseInt64After(part, label string) (int64, bool) {
	fields := strings.Fields(part)
	for i, f := range fields {
		if f != label || i+1 >= len(fields) {
			continue
		}
		v, err := strconv.ParseInt(fields[i+1], 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// parseFloatAfterColon extracts F from a segment like "Val Loss: 2.567".
func parseFloatAfterColon(part string) (float64, bool) {
	idx := strings.LastIndex(part, ":")
	if idx < 0 || idx+1 >= len(part) {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(part[idx+1:]), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
