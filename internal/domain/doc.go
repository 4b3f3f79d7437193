// Package domain contains the core business entities, value objects, and
// domain logic of the application: users and their roles, the principal
// derived from a session, and tasks together with the rules that keep a
// task's fields well-formed. It is independent of any specific
// infrastructure or delivery mechanism.
package domain
