package consumer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/carbook/platform/services/notification-service/internal/bookingapi"
)

const (
	unknownClient  = "Неизвестный клиент"
	unknownService = "Неизвестная услуга"
)

var statusTexts = map[string]string{
	"pending":   "⏳ ожидает подтверждения",
	"confirmed": "✅ подтверждена",
	"cancelled": "❌ отменена",
	"rejected":  "🚫 отклонена",
	"completed": "✔️ выполнена",
}

func statusText(status string) string {
	if s, ok := statusTexts[status]; ok {
		return s
	}
	return status
}

func day(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("02.01.2006")
}

func clock(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("15:04")
}

func price(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func renderNewAppointment(client bookingapi.Client, svc bookingapi.Service, carModel string, at time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("🆕 Новая запись!\n\n")
	fmt.Fprintf(&b, "👤 Клиент: %s\n", orDefault(client.Name, unknownClient))
	fmt.Fprintf(&b, "🔧 Услуга: %s\n", orDefault(svc.Name, unknownService))
	if carModel != "" {
		fmt.Fprintf(&b, "🚗 Автомобиль: %s\n", carModel)
	}
	fmt.Fprintf(&b, "📅 Дата: %s\n", day(at, loc))
	fmt.Fprintf(&b, "⏰ Время: %s", clock(at, loc))
	return b.String()
}

func renderStaffReminder(client bookingapi.Client, svc bookingapi.Service, at time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("⏰ Напоминание о записи!\n\n")
	fmt.Fprintf(&b, "👤 Клиент: %s\n", orDefault(client.Name, unknownClient))
	fmt.Fprintf(&b, "📅 Дата: %s\n", day(at, loc))
	fmt.Fprintf(&b, "⏰ Время: %s\n", clock(at, loc))
	fmt.Fprintf(&b, "🔧 Услуга: %s\n", orDefault(svc.Name, unknownService))
	fmt.Fprintf(&b, "💰 Стоимость: %s руб.", price(svc.Price))
	return b.String()
}

func renderCustomerReminder(svc bookingapi.Service, at time.Time, loc *time.Location) string {
	return fmt.Sprintf("⏰ Напоминание о записи!\n\nВы записаны на услугу %s %s в %s",
		orDefault(svc.Name, unknownService), day(at, loc), clock(at, loc))
}

func renderStatusChanged(svc bookingapi.Service, status string, at time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("📝 Статус вашей записи изменен!\n\n")
	fmt.Fprintf(&b, "📅 Дата: %s %s\n", day(at, loc), clock(at, loc))
	fmt.Fprintf(&b, "🔧 Услуга: %s\n", orDefault(svc.Name, unknownService))
	fmt.Fprintf(&b, "📊 Новый статус: %s", statusText(status))
	return b.String()
}

func renderClientMessage(client bookingapi.Client, text string, at time.Time, loc *time.Location) string {
	var b strings.Builder
	b.WriteString("📨 Новое сообщение от клиента!\n\n")
	fmt.Fprintf(&b, "👤 От: %s\n", orDefault(client.Name, unknownClient))
	fmt.Fprintf(&b, "📝 Текст: %s\n", text)
	fmt.Fprintf(&b, "📅 Дата: %s %s", day(at, loc), clock(at, loc))
	return b.String()
}

func renderAdminMessage(text string) string {
	return "📩 Новое сообщение от администратора:\n\n" + text
}
