package offchain

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const DefaultLocatorBase = "offchain://water-audit"

var locatorRegex = regexp.MustCompile(`^\S*/events/(\d+)$`)

type Locator string

func (l Locator) String() string {
	return string(l)
}

func FormatLocator(base string, id RecordId) Locator {
	return Locator(strings.TrimSuffix(base, "/") + "/events/" + strconv.FormatUint(uint64(id), 10))
}

// ParseLocator extracts the record id from any locator ending in /events/<id>.
func ParseLocator(locator string) (RecordId, error) {
	groups := locatorRegex.FindStringSubmatch(locator)
	if groups == nil {
		return 0, fmt.Errorf("%w: %q", ErrLocatorFormat, locator)
	}

	id, err := strconv.ParseUint(groups[1], 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid record id in %q", ErrLocatorFormat, locator)
	}

	return RecordId(id), nil
}
