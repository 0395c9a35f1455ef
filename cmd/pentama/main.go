package main

import (
	"go.uber.org/fx"

	"github.com/zhou-shi/pentama-app/pkg/routes"
)

func main() {
	fx.New(routes.Modules).Run()
}
