package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-forecast-aggregation/internal/store"
	"github.com/i474232898/weather-forecast-aggregation/internal/weather"
)

var validate = validator.New()

const referenceDateLayout = "2006-01-02"

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service) {
	v1 := app.Group("/api/v1/forecast")

	v1.Get("/", func(c *fiber.Ctx) error {
		report, err := latest(c, service)
		if err != nil {
			return err
		}
		return c.JSON(report)
	})

	v1.Get("/hourly", func(c *fiber.Ctx) error {
		report, err := latest(c, service)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"location":    report.Location,
			"generatedAt": report.GeneratedAt,
			"hourly":      report.Hourly,
		})
	})

	v1.Get("/daily", func(c *fiber.Ctx) error {
		report, err := latest(c, service)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"location":    report.Location,
			"generatedAt": report.GeneratedAt,
			"daily":       report.Daily,
		})
	})

	v1.Get("/today", func(c *fiber.Ctx) error {
		report, err := latest(c, service)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"location":    report.Location,
			"generatedAt": report.GeneratedAt,
			"today":       report.Today,
		})
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := req.Location.toLocation()
		reports, err := service.History(c.UserContext(), loc, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no forecast history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast history")
		}

		return c.JSON(fiber.Map{
			"location": loc,
			"from":     req.From,
			"to":       req.To,
			"reports":  reports,
		})
	})

	v1.Post("/refresh", func(c *fiber.Ctx) error {
		locReq, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		report, err := service.Refresh(c.UserContext(), locReq.toLocation())
		if err != nil {
			if errors.Is(err, weather.ErrNoFeed) {
				return fiber.NewError(fiber.StatusBadGateway, "no forecast provider returned usable data")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to refresh forecast")
		}

		return c.JSON(report)
	})

	v1.Post("/aggregate", func(c *fiber.Ctx) error {
		var req aggregateRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		zone := time.FixedZone("", req.UTCOffsetSeconds)
		ref, err := time.ParseInLocation(referenceDateLayout, req.ReferenceDate, zone)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "referenceDate must be YYYY-MM-DD")
		}

		feed := weather.Feed{
			Samples:    req.Samples,
			CurrentMin: req.CurrentMin,
			CurrentMax: req.CurrentMax,
			Zone:       zone,
		}
		report, err := service.Aggregate(req.Location, feed, ref)
		if err != nil {
			if errors.Is(err, weather.ErrInvalidSample) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to aggregate forecast")
		}

		return c.JSON(report)
	})
}

func latest(c *fiber.Ctx, service *weather.Service) (weather.Report, error) {
	locReq, err := parseLocationQuery(c)
	if err != nil {
		return weather.Report{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	report, err := service.Latest(c.UserContext(), locReq.toLocation())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return weather.Report{}, fiber.NewError(fiber.StatusNotFound, "no forecast for requested location")
		}
		return weather.Report{}, fiber.NewError(fiber.StatusInternalServerError, "failed to fetch forecast")
	}
	return report, nil
}

// aggregateRequest is the body of POST /aggregate.
type aggregateRequest struct {
	Location         weather.Location    `json:"location"`
	Samples          []weather.RawSample `json:"samples" validate:"dive"`
	ReferenceDate    string              `json:"referenceDate" validate:"required,datetime=2006-01-02"`
	UTCOffsetSeconds int                 `json:"utcOffsetSeconds" validate:"gte=-50400,lte=50400"`
	CurrentMin       float64             `json:"currentMin"`
	CurrentMax       float64             `json:"currentMax"`
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City    string `validate:"required"`
	Country string `validate:"required"`
}

func (l locationQuery) toLocation() weather.Location {
	return weather.Location{
		City:    l.City,
		Country: l.Country,
	}
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery

	q.City = c.Query("city")
	q.Country = c.Query("country")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
