// Package contracts holds the interfaces the application shell expects
// from feature packages.
package contracts

import "github.com/julienschmidt/httprouter"

// Handler mounts a feature's routes on the shared API router.
type Handler interface {
	RegisterRoutes(router *httprouter.Router)
}
