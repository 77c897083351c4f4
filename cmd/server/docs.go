package main

//go:generate swag init -g cmd/server/main.go -o docs

// @title           PolyRadar Paper Trading API
// @version         0.1.0
// @description     Simulated trading profiles, copy-trading rules, and risk reports.
// @host            localhost:8080
// @BasePath        /
// @schemes         http
