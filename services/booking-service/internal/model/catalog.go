package model

import "time"

type Service struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	// DurationMinutes is how long the service occupies the bay. Nil means the
	// deployment-wide default.
	DurationMinutes *int `json:"duration_minutes"`
}

func (s Service) Duration(fallback time.Duration) time.Duration {
	if s.DurationMinutes != nil && *s.DurationMinutes > 0 {
		return time.Duration(*s.DurationMinutes) * time.Minute
	}
	return fallback
}

type Client struct {
	ID          int64   `json:"id"`
	TelegramID  *int64  `json:"telegram_id"`
	Name        string  `json:"name"`
	PhoneNumber *string `json:"phone_number"`
	Timezone    string  `json:"timezone"`
}

type ClientLookup struct {
	TelegramID  *int64
	PhoneNumber string
}

type ServicePatch struct {
	Name            *string  `json:"name"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price"`
	DurationMinutes *int     `json:"duration_minutes"`
}

func (s Service) Apply(p ServicePatch) Service {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = *p.Description
	}
	if p.Price != nil {
		s.Price = *p.Price
	}
	if p.DurationMinutes != nil {
		s.DurationMinutes = p.DurationMinutes
	}
	return s
}

type ClientPatch struct {
	TelegramID  *int64  `json:"telegram_id"`
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phone_number"`
	Timezone    *string `json:"timezone"`
}

func (c Client) Apply(p ClientPatch) Client {
	if p.TelegramID != nil {
		c.TelegramID = p.TelegramID
	}
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.PhoneNumber != nil {
		c.PhoneNumber = p.PhoneNumber
	}
	if p.Timezone != nil {
		c.Timezone = *p.Timezone
	}
	return c
}
