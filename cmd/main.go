package main

import "github.com/adanyl0v/go-tasks/internal/app"

func main() {
	app.InitDefaultLogger()
	app.MustReadEnv()
	app.MustInitApplicationLogger()

	app.MustConnectPostgresIfUsed()
	defer app.DisconnectPostgres()

	app.MustConnectRedis()
	defer app.DisconnectRedis()

	app.MustConnectNATS()
	defer app.DisconnectNATS()

	app.MustInitStorage()
	defer app.CloseStorage()

	app.MustInitServices()
	app.MustListenAndServeHTTP()
}
