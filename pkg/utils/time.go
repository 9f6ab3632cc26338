package utils

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTimezone возвращается при неизвестном IANA имени таймзоны
var ErrInvalidTimezone = errors.New("invalid timezone")

// time.go - утилиты для работы со временем
//
// Назначение:
// Вспомогательные функции для временных операций, используемые
// при бакетировании статистики по календарным дням и фильтрации
// сделок по временным диапазонам.
//
// Все сделки хранятся с таймстемпами в epoch миллисекундах (UTC);
// календарный день определяется в таймзоне, запрошенной клиентом.

// MillisToTime преобразует epoch миллисекунды в time.Time (UTC)
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// TimeToMillis преобразует time.Time в epoch миллисекунды
func TimeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

// LocalDate возвращает календарную дату (YYYY-MM-DD) для epoch миллисекунд
// в указанной таймзоне.
//
// Пример: 2024-01-31T23:30:00Z в таймзоне UTC-5 - это ещё 2024-01-31
// по локальному времени, а не 2024-02-01.
func LocalDate(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return time.UnixMilli(ms).In(loc).Format("2006-01-02")
}

// DayStartIn возвращает начало календарного дня (00:00:00) для указанного
// времени в указанной таймзоне
func DayStartIn(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// NextDay возвращает начало следующего календарного дня.
// Использует AddDate, чтобы корректно пережить переходы DST.
func NextDay(dayStart time.Time) time.Time {
	return dayStart.AddDate(0, 0, 1)
}

// ParseTimezone разбирает имя таймзоны IANA ("America/New_York", "UTC").
// Пустая строка означает UTC.
func ParseTimezone(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// DateRange возвращает список дат YYYY-MM-DD от from до to включительно
// в указанной таймзоне. Используется для заполнения пустых дней
// в дневной серии PNL, когда клиент запросил сплошной диапазон.
func DateRange(fromMs, toMs int64, loc *time.Location) []string {
	if loc == nil {
		loc = time.UTC
	}
	if toMs < fromMs {
		return nil
	}

	var dates []string
	day := DayStartIn(time.UnixMilli(fromMs), loc)
	end := DayStartIn(time.UnixMilli(toMs), loc)

	for !day.After(end) {
		dates = append(dates, day.Format("2006-01-02"))
		day = NextDay(day)
	}
	return dates
}
