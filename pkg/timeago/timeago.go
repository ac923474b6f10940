// Package timeago renders timestamps as Portuguese relative labels
// ("há 2 horas") and keeps them fresh on a ticker.
package timeago

import (
	"context"
	"strconv"
	"time"
)

type unit struct {
	seconds  int64
	singular string
	plural   string
}

// Month is a flat 30 days.
var units = []unit{
	{31536000, "ano", "anos"},
	{2592000, "mês", "meses"},
	{86400, "dia", "dias"},
	{3600, "hora", "horas"},
	{60, "minuto", "minutos"},
	{1, "segundo", "segundos"},
}

// Format returns the coarsest non-zero unit between t and now. Zero elapsed
// time and timestamps in the future read "agora".
func Format(t, now time.Time) string {
	elapsed := int64(now.Sub(t) / time.Second)
	if elapsed <= 0 {
		return "agora"
	}
	for _, u := range units {
		n := elapsed / u.seconds
		if n == 0 {
			continue
		}
		name := u.plural
		if n == 1 {
			name = u.singular
		}
		return "há " + strconv.FormatInt(n, 10) + " " + name
	}
	return "agora"
}

// Refresher calls Render on every tick until the context is done.
type Refresher struct {
	Interval time.Duration
	Render   func(now time.Time)
	Now      func() time.Time
}

func NewRefresher(render func(now time.Time)) *Refresher {
	return &Refresher{Interval: time.Minute, Render: render, Now: time.Now}
}

// Run renders once immediately and then on each interval. It blocks until
// ctx is cancelled.
func (r *Refresher) Run(ctx context.Context) {
	r.Render(r.Now())

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Render(r.Now())
		}
	}
}
