package templates

import _ "embed"

var (
	//go:embed resource/hello.txt
	Hello string
	//go:embed resource/noChanges.txt
	NoChanges string
	//go:embed resource/noGames.txt
	NoGames string
	//go:embed resource/unexpectedError.txt
	UnexpectedError string
)
