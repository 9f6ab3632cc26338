// Package handlers содержит HTTP handlers тонкого request-слоя.
//
// Handlers не содержат доменной логики: парсинг запроса, вызов сервиса,
// маппинг доменных ошибок на HTTP статусы, сериализация ответа.
package handlers

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// SuccessResponse стандартный формат успешного ответа
type SuccessResponse struct {
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}
