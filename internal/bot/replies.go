package bot

import (
	"fmt"
	"strings"

	"github.com/magabrotheeeer/membership-bot/internal/models"
	"github.com/magabrotheeeer/membership-bot/internal/telegram"
)

// maxChunk запас до лимита Telegram в 4096 символов.
const maxChunk = 4000

const adminHelp = "👮‍♂️ *Admin Commands*\n\n" +
	"/aprobar \\<user\\_id\\> \\- Aprueba un pago y extiende la suscripción\n" +
	"/denegar \\<user\\_id\\> \\- Rechaza un pago y elimina al usuario\n" +
	"/renovar \\- Notifica a admins que quieres renovar tu suscripción\n" +
	"/tiempoRestante \\- Comprueba días restantes de tu suscripción\n" +
	"/expiring \\<days\\> \\- Lista usuarios con suscripciones próximas a vencer\n"

const (
	msgAlreadyRegistered = "Ya estás registrado en nuestro sistema.\n\n" +
		"Si deseas /renovar tu suscripción o saber cuánto tiempo te queda, " +
		"puedes contactarte con el administrador o enviar el comando /tiempoRestante para verificarlo.\n\n" +
		"¡Gracias por formar parte de nuestro grupo!"

	msgWelcome = "Bienvenido al Bot de 1% aquí podrás /renovar tu suscripción para mantenerte en el grupo. " +
		"También podrás verificar el tiempo que te resta con el comando /tiempoRestante.\n\n" +
		"Si estás aquí es porque ya debes haber realizado el pago para la suscripción y en este momento " +
		"solo debes esperar que un Admin confirme que tu pago ha sido aprobado.\n\n" +
		"Una vez aprobado te enviaré un mensaje por este chat para que te unas al grupo de señales 🚀"

	msgRenewal = "Estás intentando renovar tu suscripción.\n\n" +
		"Si ya realizaste el pago, por favor espera a que un Admin confirme que tu pago ha sido aprobado.\n\n" +
		"Una vez aprobado te enviaré un mensaje por este chat para que sepas que tu renovación está activa 🚀"

	msgNoApprovePermission = "❌ No tienes permisos para aprobar pagos."
	msgNoDenyPermission    = "❌ No tienes permisos para denegar pagos."
	msgNoPermission        = "⛔ No tienes permiso para usar este comando."

	msgApproveUsage  = "⚠️ Uso incorrecto. Usa: /aprobar <telegram_user_id>"
	msgDenyUsage     = "⚠️ Uso incorrecto. Usa: /denegar <telegram_user_id>"
	msgExpiringUsage = "Uso: /expiring <días>"

	msgExpired       = "🚫 Tu acceso ha expirado. Contacta con un administrador para renovarlo."
	msgNotRegistered = "⚠️ No estás registrado en el sistema."
	msgInternal      = "⚠️ Ocurrió un error. Inténtalo de nuevo más tarde."
)

func msgApproved(userID int64, paidUntil string) string {
	return fmt.Sprintf("✅ Pago aprobado. El usuario %d tiene acceso hasta %s.", userID, paidUntil)
}

func msgDenied(userID int64) string {
	return fmt.Sprintf("🚫 Usuario %d ha sido denegado.", userID)
}

func msgDenyNotFound(userID int64) string {
	return fmt.Sprintf("⚠️ No se encontró al usuario con ID %d en la base de datos.", userID)
}

func msgDaysLeft(days int) string {
	return fmt.Sprintf("🕒 Te quedan %d días antes de que venza tu acceso.", days)
}

func msgNoneExpiring(days int) string {
	return fmt.Sprintf("Ningún usuario con suscripción próxima a vencer en %d días.", days)
}

// expiringReport строки отчёта в MarkdownV2, разбитые на сообщения.
func expiringReport(rows []models.ExpiringRow) []string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, fmt.Sprintf("📅 *Suscripciones por vencer:* %d usuarios\n", len(rows)))
	for _, row := range rows {
		lines = append(lines, fmt.Sprintf("• @%s \\| %s \\| `%s`",
			telegram.Escape(row.Handle), telegram.Escape(row.DisplayName), row.PaidUntil))
	}
	return chunkLines(lines, maxChunk)
}

// chunkLines склеивает строки в сообщения длиной не больше limit байт.
// Строка длиннее limit уходит отдельным сообщением.
func chunkLines(lines []string, limit int) []string {
	var chunks []string
	var b strings.Builder
	for _, line := range lines {
		if b.Len() > 0 && b.Len()+len(line)+1 > limit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
