package main

//go:generate swag init -g cmd/pollkeeper/main.go -o docs

// @title           Pollkeeper API
// @version         0.1.0
// @description     Reconciled poll views, quadratic vote pricing and funding plans for poll creators.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
