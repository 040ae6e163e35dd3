package main

import "github.com/adanyl0v/go-tasks/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustConnectPostgresIfUsed()
	app.MustConnectRedis()
	app.MustConnectNATS()
	app.MustInitStorage()
	app.MustInitServices()

	app.StartFunction()
}
