package main

import (
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const scopeName = "github.com/Electron910/Vocalis/cmd/vocalis"

var logger = otelslog.NewLogger(scopeName)
