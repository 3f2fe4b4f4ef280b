package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title Regress API
// @version 0.1
// @description Content regression detection: save hook, status queries and batch runs.
// @BasePath /
