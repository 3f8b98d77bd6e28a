package market

import "fmt"

// Interval identifies a candle bucket width. Day intervals bucket on the
// session-open instant of the tick's date instead of a fixed minute width.
type Interval struct {
	Name    string
	Minutes int
	Day     bool
}

var (
	IntervalMinute   = Interval{Name: "minute", Minutes: 1}
	Interval3Minute  = Interval{Name: "3minute", Minutes: 3}
	Interval5Minute  = Interval{Name: "5minute", Minutes: 5}
	Interval10Minute = Interval{Name: "10minute", Minutes: 10}
	Interval15Minute = Interval{Name: "15minute", Minutes: 15}
	Interval30Minute = Interval{Name: "30minute", Minutes: 30}
	Interval60Minute = Interval{Name: "60minute", Minutes: 60}
	IntervalDay      = Interval{Name: "day", Minutes: 375, Day: true} // one NSE session
)

var intervalRegistry = map[string]Interval{}

func init() {
	for _, iv := range []Interval{
		IntervalMinute, Interval3Minute, Interval5Minute, Interval10Minute,
		Interval15Minute, Interval30Minute, Interval60Minute, IntervalDay,
	} {
		intervalRegistry[iv.Name] = iv
	}
}

// ParseInterval returns the interval registered under the given name.
func ParseInterval(name string) (Interval, error) {
	iv, ok := intervalRegistry[name]
	if !ok {
		return Interval{}, fmt.Errorf("unsupported interval: %s", name)
	}
	return iv, nil
}

// ParseIntervals resolves a list of interval names, rejecting unknown ones.
func ParseIntervals(names []string) ([]Interval, error) {
	out := make([]Interval, 0, len(names))
	for _, name := range names {
		iv, err := ParseInterval(name)
		if err != nil {
			return nil, err
		}
		out = append(out, iv)
	}
	return out, nil
}
