package config

import (
	"errors"
	"os"
	"time"
)

type Config struct {
	HTTPAddr        string
	DBDSN           string
	JWTIssuer       string
	JWTSecret       string
	JWTTTL          time.Duration
	InternalToken   string
	WebSocketOrigin string
	StartingBalance string
	SweepInterval   time.Duration
	PriceBaseURL    string
	PriceTimeout    time.Duration
	StreamInterval  time.Duration
}

func Load() (Config, error) {
	var c Config
	var missing []string
	c.HTTPAddr = os.Getenv("HTTP_ADDR")
	if c.HTTPAddr == "" {
		missing = append(missing, "HTTP_ADDR")
	}
	c.DBDSN = os.Getenv("DB_DSN")
	if c.DBDSN == "" {
		missing = append(missing, "DB_DSN")
	}
	c.JWTIssuer = os.Getenv("JWT_ISSUER")
	if c.JWTIssuer == "" {
		missing = append(missing, "JWT_ISSUER")
	}
	c.JWTSecret = os.Getenv("JWT_SECRET")
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	jwtTTL := os.Getenv("JWT_TTL")
	if jwtTTL == "" {
		missing = append(missing, "JWT_TTL")
	} else {
		d, err := time.ParseDuration(jwtTTL)
		if err != nil {
			return c, err
		}
		c.JWTTTL = d
	}
	c.InternalToken = os.Getenv("INTERNAL_API_TOKEN")
	if c.InternalToken == "" {
		missing = append(missing, "INTERNAL_API_TOKEN")
	}
	c.WebSocketOrigin = os.Getenv("WS_ORIGIN")
	if c.WebSocketOrigin == "" {
		missing = append(missing, "WS_ORIGIN")
	}
	c.StartingBalance = os.Getenv("STARTING_BALANCE")
	if c.StartingBalance == "" {
		c.StartingBalance = "10000"
	}
	sweep := os.Getenv("SWEEP_INTERVAL")
	if sweep == "" {
		c.SweepInterval = time.Minute
	} else {
		d, err := time.ParseDuration(sweep)
		if err != nil {
			return c, errors.New("invalid SWEEP_INTERVAL")
		}
		c.SweepInterval = d
	}
	c.PriceBaseURL = os.Getenv("PRICE_BASE_URL")
	if c.PriceBaseURL == "" {
		c.PriceBaseURL = "https://query1.finance.yahoo.com"
	}
	priceTimeout := os.Getenv("PRICE_TIMEOUT")
	if priceTimeout == "" {
		c.PriceTimeout = 10 * time.Second
	} else {
		d, err := time.ParseDuration(priceTimeout)
		if err != nil {
			return c, errors.New("invalid PRICE_TIMEOUT")
		}
		c.PriceTimeout = d
	}
	streamInterval := os.Getenv("STREAM_INTERVAL")
	if streamInterval == "" {
		c.StreamInterval = 2 * time.Second
	} else {
		d, err := time.ParseDuration(streamInterval)
		if err != nil {
			return c, errors.New("invalid STREAM_INTERVAL")
		}
		c.StreamInterval = d
	}
	if len(missing) > 0 {
		return c, errors.New("missing required env: " + join(missing))
	}
	return c, nil
}

func join(items []string) string {
	if len(items) == 0 {
		return ""
	}
	out := items[0]
	for i := 1; i < len(items); i++ {
		out += "," + items[i]
	}
	return out
}
