package controllers

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
)

var validate = validator.New()

// jsonError writes the common {"error","message"} body.
func jsonError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": code, "message": message})
}

func badRequest(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusBadRequest, "bad_request", message)
}

func notFound(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusNotFound, "not_found", message)
}

func conflict(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusConflict, "conflict", message)
}

func unauthorized(c *fiber.Ctx) error {
	return jsonError(c, fiber.StatusUnauthorized, "unauthorized", "login required")
}

// internalError logs err and answers with a generic 500. The error text is
// never sent to the client.
func internalError(c *fiber.Ctx, component, message string, err error) error {
	log.Errorf("[%s] %s: %v", component, message, err)
	return jsonError(c, fiber.StatusInternalServerError, "internal_server_error", message)
}

// parseIDParam reads a positive numeric route parameter.
func parseIDParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// parsePaging reads page and page_size query values. Zero means "use default".
func parsePaging(c *fiber.Ctx) (page, size int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	size = c.QueryInt("page_size", 0)
	if size < 0 {
		size = 0
	}
	return page, size
}

// pageBounds converts page and size into an offset and limit with a cap.
func pageBounds(page, size, def, max int) (offset, limit int) {
	if size <= 0 {
		size = def
	}
	if size > max {
		size = max
	}
	return (page - 1) * size, size
}

// bindJSON parses the request body into out and validates its tags.
func bindJSON(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return errors.New("invalid request body")
	}
	if err := validate.Struct(out); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

// validationMessage flattens validator errors into one readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := toSnake(fe.Field())
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

func toSnake(s string) string {
	return strings.ToLower(camelBoundary.ReplaceAllString(s, "${1}_${2}"))
}
