package service

import "tradejournal/internal/models"

// ValidSyncTransitions определяет допустимые переходы между состояниями
// цикла синхронизации. Из любого рабочего состояния возможен переход
// в failed; failed сбрасывается только новым запуском цикла.
var ValidSyncTransitions = map[string][]string{
	models.SyncStateIdle:      {models.SyncStateFetching},
	models.SyncStateFetching:  {models.SyncStateMerging, models.SyncStateFailed},
	models.SyncStateMerging:   {models.SyncStateAdvancing, models.SyncStateFailed},
	models.SyncStateAdvancing: {models.SyncStateIdle, models.SyncStateFailed},
	models.SyncStateFailed:    {models.SyncStateFetching}, // только новый запуск
}

// CanTransition проверяет допустимость перехода
func CanTransition(from, to string) bool {
	allowed, ok := ValidSyncTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// StateInfo возвращает описание состояния для UI
func StateInfo(s string) string {
	switch s {
	case models.SyncStateIdle:
		return "Синхронизация не выполняется"
	case models.SyncStateFetching:
		return "Выгрузка закрытых сделок от провайдера..."
	case models.SyncStateMerging:
		return "Слияние сделок в хранилище..."
	case models.SyncStateAdvancing:
		return "Продвижение watermark..."
	case models.SyncStateFailed:
		return "Последний цикл завершился ошибкой"
	default:
		return "Неизвестное состояние"
	}
}

// IsRunning возвращает true, если цикл синхронизации в процессе
func IsRunning(s string) bool {
	return s == models.SyncStateFetching || s == models.SyncStateMerging || s == models.SyncStateAdvancing
}
