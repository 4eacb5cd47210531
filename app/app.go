// package app provides a composition based component framework for building
// an admin site out of distinct sub-applications.
//
// An example of an application is the document editor or the autosave
// endpoints it talks to.
package app

import (
	"github.com/go-chi/chi/v5"
)

// Bindable items can bind their URL routes to a router.
type Bindable interface {
	Bind(r chi.Router)
}

// An App is a component that controls a part of a website.
type App interface {
	Bindable
	Name() string
	Migrate() error
}

// An Admin is a component that allows a user to administer a website.
// Admins are bound behind authentication by the admin app.
type Admin interface {
	Bindable
	Name() string
}

// Migrate runs Migrate on each app in order, stopping at the first error.
func Migrate(apps ...App) error {
	for _, a := range apps {
		if err := a.Migrate(); err != nil {
			return err
		}
	}
	return nil
}
