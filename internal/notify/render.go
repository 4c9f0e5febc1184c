package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/membership-bot/internal/lib/calendar"
	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/telegram"
)

// Message готовый к отправке текст.
type Message struct {
	Text     string
	Markdown bool
}

// Renderer формирует тексты уведомлений.
type Renderer struct {
	InviteLink string
}

const automatic = "_Este es un mensaje automático\\._"

// Render возвращает текст уведомления n.
func (r Renderer) Render(n models.Notification) (Message, error) {
	date := calendar.Format(n.PaidUntil)
	switch n.Kind {
	case models.NotifyPaymentApproved:
		text := fmt.Sprintf("✅ ¡Tu pago ha sido confirmado! Tienes acceso hasta %s.", date)
		if r.InviteLink != "" {
			text += "\n\nPor favor utiliza este link para unirte al grupo: 🔗 " + r.InviteLink
		}
		return Message{Text: text}, nil

	case models.NotifyPaymentDenied:
		return Message{Text: "🚫 Tu pago no fue confirmado. Contacta con un administrador."}, nil

	case models.NotifyAccessExpired:
		return Message{Text: "🚫 Tu acceso ha expirado. Contacta con un administrador para renovarlo."}, nil

	case models.NotifyLastDay:
		return Message{Markdown: true, Text: "⚠️ Hasta el día de hoy llega tu suscripción, de no cancelar, " +
			"serás automáticamente sacado del grupo\\.\n\n" +
			"Para renovar contacta a la persona que te ingresó\\.\n\n" + automatic}, nil

	case models.NotifyDueTomorrow:
		name := n.Subject.FirstName
		if name == "" {
			name = "Usuario"
		}
		return Message{Markdown: true, Text: fmt.Sprintf(
			"🔔 Hola %s, mañana se vence tu suscripción, recuerda realizar el pago con anticipación\\.\n\n"+
				"Para renovar contacta a la persona que te agregó al grupo o envia /renovar "+
				"y un administrador se contactará contigo lo antes posible\\.\n\n%s",
			telegram.Escape(name), automatic)}, nil

	case models.NotifyExpiredRemoval:
		return Message{Markdown: true, Text: fmt.Sprintf(
			"⚠️ Tu suscripción venció el %s, y no hemos recibido una renovación\\.\n\n"+
				"Por esta razón serás removido del grupo\\.\n\n"+
				"Para volver a ingresar, realiza el pago correspondiente y usa el comando /start o /renovar\\.\n\n%s",
			telegram.Escape(date), automatic)}, nil

	case models.NotifyAdminNewMember:
		return Message{Markdown: true, Text: adminAlert(n.Subject,
			"tienes una nueva verificación de pago que realizar",
			"El usuario está intentando unirse al grupo",
			"Para aprobar al usuario y permitirle acceso usa")}, nil

	case models.NotifyAdminRenewal:
		return Message{Markdown: true, Text: adminAlert(n.Subject,
			"tienes una nueva verificación de *renovación* de pago",
			"El usuario está intentando renovar su acceso",
			"Para aprobar la renovación usa")}, nil
	}
	return Message{}, fmt.Errorf("notify.Render: unknown notification kind %q", n.Kind)
}

func adminAlert(m models.Member, headline, situation, approveHint string) string {
	id := strconv.FormatInt(m.PlatformID, 10)
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ *Admin*, %s\\.\n\n", headline)
	fmt.Fprintf(&b, "• *ID:* `%s`\n", telegram.Escape(id))
	fmt.Fprintf(&b, "• *Username:* @%s\n", telegram.Escape(m.Handle))
	fmt.Fprintf(&b, "• *Nombre y Apellido:* %s %s\n\n", telegram.Escape(m.FirstName), telegram.Escape(m.LastName))
	fmt.Fprintf(&b, "%s\\.\n\n", situation)
	fmt.Fprintf(&b, "Si no tienes un pago de parte de esta persona, contacta o envía el comando `/denegar %s`\n\n", id)
	fmt.Fprintf(&b, "%s `/aprobar %s`\n", approveHint, id)
	return b.String()
}
