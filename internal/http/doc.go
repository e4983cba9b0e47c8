// Package http provides the JSON presentation layer for the booking API.
//
// The router exposes the following endpoints:
//   - POST /login: issues a session token. Body: {"email","password"}. Response:
//     {"token","expires_at"} with the token also surfaced via the
//     `X-Session-Token` header and a `session_token` cookie.
//   - POST /logout: revokes the current session token extracted from the
//     Authorization header or session cookie. Returns 204 and clears the cookie.
//   - POST /sessions/refresh: rotates the current session token.
//   - GET /requests, POST /requests: list and create meeting requests. Listing
//     applies the visibility rules for the authenticated principal.
//   - POST /requests/recurring: expands a weekly series and books every
//     admissible occurrence, reporting dropped dates with reasons.
//   - GET /requests/{id}: fetch a single request subject to visibility rules.
//   - DELETE /requests/{id}: hard-delete a rejected request (requester only).
//   - POST /requests/{id}/approve, /reject, /cancel: lifecycle transitions.
//   - GET /availability?date=&start=&end=: admissibility probe for a slot.
//   - GET /departments, POST /departments, PUT /departments/{id},
//     DELETE /departments/{id}: department management (mutations admin only).
//   - GET /departments/{id}/quota?date=: weekly quota usage for the ISO week
//     containing the date.
//   - GET /users, POST /users, PUT /users/{id}, DELETE /users/{id}:
//     administrator controlled user management.
//   - GET /closed-dates?from=&to=, POST /closed-dates,
//     DELETE /closed-dates/{date}: the administrative closure calendar.
//
// User-facing messages are localized through the i18n bundle using the
// request's Accept-Language header; Japanese is the default. Request and
// response DTOs live alongside their respective handlers.
package http
