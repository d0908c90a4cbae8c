package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

const eventTablesKey = "event_tables"

// EventFilter reads ?tables=a,b from an event stream request. An empty filter
// means every table.
func EventFilter() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tables := map[string]bool{}
		for _, t := range strings.Split(c.Query("tables"), ",") {
			if t = strings.TrimSpace(t); t != "" {
				tables[t] = true
			}
		}
		c.Locals(eventTablesKey, tables)
		return c.Next()
	}
}

// EventTables returns the filter EventFilter attached.
func EventTables(c *fiber.Ctx) map[string]bool {
	tables, _ := c.Locals(eventTablesKey).(map[string]bool)
	return tables
}
