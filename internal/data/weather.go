package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Weather types.
const (
	WeatherClear    = "clear"
	WeatherFog      = "fog"
	WeatherWind     = "wind"
	WeatherSquall   = "squall"
	WeatherColdSnap = "cold_snap"
	WeatherSaltRain = "salt_rain"
)

// WeatherTable holds the transition weights, look overlays, and change
// broadcast messages. Any section missing from the YAML file falls back
// to the baked defaults, as does the whole table when the file is absent.
type WeatherTable struct {
	Transitions map[string]map[string]int    `yaml:"transitions"` // from -> to -> weight
	Overlays    map[string]map[string]string `yaml:"overlays"`    // type -> exposure -> line
	Messages    map[string]string            `yaml:"messages"`    // type -> change broadcast
}

// LoadWeatherTable loads the weather table from a YAML file, filling
// missing sections from the defaults.
func LoadWeatherTable(path string) (*WeatherTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weather: %w", err)
	}
	var t WeatherTable
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}
	d := DefaultWeatherTable()
	if t.Transitions == nil {
		t.Transitions = d.Transitions
	}
	if t.Overlays == nil {
		t.Overlays = d.Overlays
	}
	if t.Messages == nil {
		t.Messages = d.Messages
	}
	for from, row := range t.Transitions {
		total := 0
		for _, w := range row {
			if w < 0 {
				return nil, fmt.Errorf("weather: negative weight in %s row", from)
			}
			total += w
		}
		if total <= 0 {
			return nil, fmt.Errorf("weather: empty transition row for %s", from)
		}
	}
	return &t, nil
}

// DefaultWeatherTable returns the built-in tables.
func DefaultWeatherTable() *WeatherTable {
	return &WeatherTable{
		Transitions: map[string]map[string]int{
			WeatherClear:    {WeatherClear: 50, WeatherFog: 30, WeatherWind: 20},
			WeatherFog:      {WeatherFog: 40, WeatherClear: 40, WeatherSquall: 20},
			WeatherWind:     {WeatherWind: 50, WeatherClear: 30, WeatherSquall: 20},
			WeatherSquall:   {WeatherWind: 50, WeatherClear: 50},
			WeatherColdSnap: {WeatherColdSnap: 40, WeatherClear: 60},
			WeatherSaltRain: {WeatherSaltRain: 50, WeatherClear: 50},
		},
		Overlays: map[string]map[string]string{
			WeatherClear: {
				ExposureOutdoor:   "The air is still and clear.",
				ExposureSheltered: "The sky is clear beyond shelter.",
				ExposureCoastal:   "Clear skies over the water.",
			},
			WeatherFog: {
				ExposureOutdoor:   "A cold fog crawls through, muffling sound and swallowing distant shapes.",
				ExposureSheltered: "Fog drifts past, dimming the world beyond.",
				ExposureCoastal:   "Sea fog rolls in, thick and clammy.",
			},
			WeatherWind: {
				ExposureOutdoor:   "The wind blows steadily, tugging at clothes and foliage.",
				ExposureSheltered: "Wind whistles past your shelter.",
				ExposureCoastal:   "Wind whips off the water, sharp and salt-tanged.",
			},
			WeatherSquall: {
				ExposureOutdoor:   "A squall drives rain and wind; visibility drops.",
				ExposureSheltered: "A squall batters the world outside.",
				ExposureCoastal:   "A squall whips the coast; spray and rain sting.",
			},
			WeatherColdSnap: {
				ExposureOutdoor:   "A cold snap bites; breath fogs and fingers numb.",
				ExposureSheltered: "Cold seeps in despite shelter.",
				ExposureCoastal:   "Bitter wind off the water cuts through.",
			},
			WeatherSaltRain: {
				ExposureOutdoor:   "Salt rain falls, stinging skin and metal.",
				ExposureSheltered: "Salt rain drums beyond shelter.",
				ExposureCoastal:   "Salt rain and spray lash the coast.",
			},
		},
		Messages: map[string]string{
			WeatherClear:    "The weather clears.",
			WeatherFog:      "Fog rolls in, thickening the air.",
			WeatherWind:     "The wind rises.",
			WeatherSquall:   "A squall sweeps in.",
			WeatherColdSnap: "A cold snap descends.",
			WeatherSaltRain: "Salt rain begins to fall.",
		},
	}
}
