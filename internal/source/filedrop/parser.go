package filedrop

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dispatchworks/alarmhub/internal/domain/operation"
)

// errMissingNumber marks dispatch files without an operation number.
var errMissingNumber = errors.New("dispatch file carries no operation number")

// ParseOperation reads the drop directory dispatch format: one "key: value"
// pair per line, blank lines and "#" comments ignored. Unknown keys are kept
// as custom data so downstream jobs can still see them.
func ParseOperation(contents []byte) (*operation.Operation, error) {
	op := operation.New()

	scanner := bufio.NewScanner(bytes.NewReader(contents))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, ":")
		if !found {
			return nil, fmt.Errorf("malformed line %q", line)
		}

		if err := applyField(op, strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan dispatch file: %w", err)
	}

	if op.Number == "" {
		return nil, errMissingNumber
	}

	return op, nil
}

func applyField(op *operation.Operation, key, value string) error {
	switch key {
	case "number":
		op.Number = value
	case "alarm_at":
		alarmAt, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return fmt.Errorf("invalid alarm_at %q: %w", value, err)
		}

		op.AlarmAt = alarmAt
	case "keyword":
		op.Keywords.Keyword = value
	case "emergency_keyword":
		op.Keywords.EmergencyKeyword = value
	case "messenger":
		op.Messenger = value
	case "priority":
		op.Priority = value
	case "comment":
		op.Comment = value
	case "street":
		op.Einsatzort.Street = value
	case "house_number":
		op.Einsatzort.HouseNumber = value
	case "zip_code":
		op.Einsatzort.ZipCode = value
	case "city":
		op.Einsatzort.City = value
	case "intersection":
		op.Einsatzort.Intersection = value
	case "property":
		op.Einsatzort.Property = value
	case "loops":
		op.Loops = operation.ParseLoopList(value)
	case "resources":
		for _, resource := range strings.Split(value, operation.LoopSeparator) {
			if resource = strings.TrimSpace(resource); resource != "" {
				op.Resources = append(op.Resources, resource)
			}
		}
	default:
		op.SetCustomValue(key, value)
	}

	return nil
}
