package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"tradejournal/pkg/utils"
)

// Recovery - middleware для восстановления после паники в handlers.
//
// Перехватывает panic в HTTP handlers и предотвращает падение всего
// сервера: логирует ошибку со stack trace и возвращает клиенту 500.
// Тело ответа не содержит деталей паники - они могут включать
// внутренние данные запроса.
func Recovery(logger *utils.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic in handler",
						zap.Any("panic", err),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.ByteString("stack", debug.Stack()),
					)

					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
