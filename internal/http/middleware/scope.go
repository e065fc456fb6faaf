package middleware

import (
	"github.com/gofiber/fiber/v2"

	"userapi/internal/memo"
)

// Scope gives every request its own memo scope.
//
// The scope is attached to the request's user context so services reached
// from the handler share memoized results for this request only. It is
// closed when the handler chain returns, dropping everything it holds.
func Scope() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := memo.NewScope(c.UserContext())
		defer s.Close()

		c.SetUserContext(memo.WithScope(c.UserContext(), s))
		return c.Next()
	}
}
