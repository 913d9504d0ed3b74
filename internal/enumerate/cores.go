package enumerate

import (
	"github.com/pkg/errors"
	psCpu "github.com/shirou/gopsutil/cpu"
)

// LogicalCoreCount never reports fewer than one core, so ratios derived
// from it stay well-defined even when detection fails.
func LogicalCoreCount() (int, error) {
	count, err := psCpu.Counts(true)
	if err != nil {
		return 1, errors.WithMessage(err, "count logical cores")
	}
	if count < 1 {
		count = 1
	}
	return count, nil
}
