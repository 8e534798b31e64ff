// Package weather implements the supplemented weather/forecast path
// (SPEC_FULL.md, grounded on orx_search's weather_client.py): geocode a
// free-text location, then fetch current conditions or an N-day forecast
// from the Open-Meteo API in the configured unit system.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/jholhewres/chatrelay/pkg/chatrelay/config"
)

// Client fetches current conditions and forecasts for free-text locations.
type Client struct {
	http  *http.Client
	units config.WeatherUnits
}

func NewClient(units config.WeatherUnits, timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}, units: units}
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Country   string  `json:"country"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

type forecastResponse struct {
	Current struct {
		Temperature2m float64 `json:"temperature_2m"`
		WeatherCode   int     `json:"weather_code"`
	} `json:"current"`
	Daily struct {
		Time          []string  `json:"time"`
		TempMax       []float64 `json:"temperature_2m_max"`
		TempMin       []float64 `json:"temperature_2m_min"`
		WeatherCode   []int     `json:"weather_code"`
	} `json:"daily"`
}

// Current returns a one-line current-conditions string for location, or an
// error with a user-visible message ("Weather service is unavailable. Try
// again later.") on failure.
func (c *Client) Current(ctx context.Context, location string) (string, error) {
	lat, lon, name, err := c.geocode(ctx, location)
	if err != nil {
		return "", err
	}
	unit := "celsius"
	if c.units == config.UnitsImperial {
		unit = "fahrenheit"
	}
	u := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%f&longitude=%f&current=temperature_2m,weather_code&temperature_unit=%s",
		lat, lon, unit,
	)
	var fr forecastResponse
	if err := c.getJSON(ctx, u, &fr); err != nil {
		return "", weatherUnavailable(err)
	}
	symbol := "°C"
	if c.units == config.UnitsImperial {
		symbol = "°F"
	}
	return fmt.Sprintf("%s: %.0f%s, %s", name, fr.Current.Temperature2m, symbol, describeCode(fr.Current.WeatherCode)), nil
}

// Forecast returns a multi-day forecast string for location.
func (c *Client) Forecast(ctx context.Context, location string, days int) (string, error) {
	lat, lon, name, err := c.geocode(ctx, location)
	if err != nil {
		return "", err
	}
	if days <= 0 {
		days = 3
	}
	unit := "celsius"
	if c.units == config.UnitsImperial {
		unit = "fahrenheit"
	}
	u := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%f&longitude=%f&daily=temperature_2m_max,temperature_2m_min,weather_code&temperature_unit=%s&forecast_days=%d",
		lat, lon, unit, days,
	)
	var fr forecastResponse
	if err := c.getJSON(ctx, u, &fr); err != nil {
		return "", weatherUnavailable(err)
	}
	symbol := "°C"
	if c.units == config.UnitsImperial {
		symbol = "°F"
	}
	out := name + " forecast:\n"
	for i := range fr.Daily.Time {
		out += fmt.Sprintf("%s: %.0f%s / %.0f%s, %s\n",
			fr.Daily.Time[i], fr.Daily.TempMax[i], symbol, fr.Daily.TempMin[i], symbol,
			describeCode(fr.Daily.WeatherCode[i]))
	}
	return out, nil
}

func (c *Client) geocode(ctx context.Context, location string) (lat, lon float64, name string, err error) {
	u := "https://geocoding-api.open-meteo.com/v1/search?count=1&name=" + url.QueryEscape(location)
	var gr geocodeResponse
	if err := c.getJSON(ctx, u, &gr); err != nil {
		return 0, 0, "", weatherUnavailable(err)
	}
	if len(gr.Results) == 0 {
		return 0, 0, "", weatherUnavailable(fmt.Errorf("no geocoding match for %q", location))
	}
	r := gr.Results[0]
	return r.Latitude, r.Longitude, r.Name, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("weather: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Error is the user-visible weather failure message.
type Error struct{ cause error }

func (e *Error) Error() string { return "Weather service is unavailable. Try again later." }
func (e *Error) Unwrap() error { return e.cause }

func weatherUnavailable(cause error) error { return &Error{cause: cause} }

func describeCode(code int) string {
	switch {
	case code == 0:
		return "clear"
	case code <= 3:
		return "partly cloudy"
	case code <= 48:
		return "foggy"
	case code <= 67:
		return "rainy"
	case code <= 77:
		return "snowy"
	case code <= 82:
		return "rain showers"
	case code <= 99:
		return "thunderstorms"
	default:
		return "unknown conditions"
	}
}
