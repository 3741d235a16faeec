package i18n

// Keys must match errors.MessageKey(kind, code).
const (
	CodeHTTPUnauthorized       = "HTTP_UNAUTHORIZED"
	CodeHTTPForbidden          = "HTTP_FORBIDDEN"
	CodeHTTPNotFound           = "HTTP_NOT_FOUND"
	CodeHTTPServerError        = "HTTP_SERVER_ERROR"
	CodeHTTPNoInternet         = "HTTP_NO_INTERNET"
	CodeHTTPSerialization      = "HTTP_SERIALIZATION"
	CodeHTTPUnknown            = "HTTP_UNKNOWN"
	CodeWebSocketUnknown       = "WEBSOCKET_UNKNOWN"
	CodeWebSocketSerialization = "WEBSOCKET_SERIALIZATION"
	CodeLocalNoData            = "LOCAL_NO_DATA"
	CodeLocalUnknown           = "LOCAL_UNKNOWN"
)

var enUSCatalog = NewCatalog("en-US", map[Code]string{
	CodeHTTPUnauthorized:       "Your session has expired. Sign in again.",
	CodeHTTPForbidden:          "You are not allowed to join this table.",
	CodeHTTPNotFound:           "This table no longer exists.",
	CodeHTTPServerError:        "The game server failed. Try again later.",
	CodeHTTPNoInternet:         "No internet connection.",
	CodeHTTPSerialization:      "The game server sent data this client cannot read.",
	CodeHTTPUnknown:            "Something went wrong.",
	CodeWebSocketUnknown:       "Connection to the table was interrupted.",
	CodeWebSocketSerialization: "An update from the table could not be read.",
	CodeLocalNoData:            "No saved session was found.",
	CodeLocalUnknown:           "Local storage is unavailable.",
})

var ptBRCatalog = NewCatalog("pt-BR", map[Code]string{
	CodeHTTPUnauthorized:       "Sua sessão expirou. Entre novamente.",
	CodeHTTPForbidden:          "Você não tem permissão para entrar nesta mesa.",
	CodeHTTPNotFound:           "Esta mesa não existe mais.",
	CodeHTTPServerError:        "O servidor de jogo falhou. Tente mais tarde.",
	CodeHTTPNoInternet:         "Sem conexão com a internet.",
	CodeHTTPSerialization:      "O servidor enviou dados que este cliente não entende.",
	CodeHTTPUnknown:            "Algo deu errado.",
	CodeWebSocketUnknown:       "A conexão com a mesa foi interrompida.",
	CodeWebSocketSerialization: "Uma atualização da mesa não pôde ser lida.",
	CodeLocalNoData:            "Nenhuma sessão salva foi encontrada.",
	CodeLocalUnknown:           "O armazenamento local está indisponível.",
})
