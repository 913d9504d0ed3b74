package host

import (
	"github.com/distatus/battery"
	"github.com/pkg/errors"
	"gopkg.in/guregu/null.v3"
)

// BatteryPercent returns the combined charge level of all batteries as a
// percentage, or an invalid value on hosts without a battery.
func BatteryPercent() (null.Float, error) {
	batteries, err := battery.GetAll()
	if err != nil {
		return null.Float{}, errors.WithMessage(err, "get batteries")
	}

	var current, full float64
	for _, b := range batteries {
		current += b.Current
		full += b.Full
	}
	if full <= 0 {
		return null.Float{}, nil
	}

	return null.FloatFrom(current / full * 100.0), nil
}
