package workflow

import "github.com/solmari/civassist/plugin/assistant/langdetect"

// promptSet holds the per-language workflow copy. Format strings are
// documented on each field.
type promptSet struct {
	appointmentUnavailable string
	selectService          string
	invalidChoice          string
	selectDate             string // %s = service name
	noDates                string
	selectTime             string // %s = date
	noSlots                string
	slotTaken              string
	collectInfo            string
	contactRetry           string
	confirmAppointment     string // service, date, slot, name
	appointmentCreated     string // %s = booking id
	requestUnavailable     string
	collectDetails         string
	collectLocation        string
	confirmRequest         string // category, description, location
	requestCreated         string // ticket id, SLA hours
	persistFailed          string
	cancelled              string
	yesLabel               string
	noLabel                string
	notProvided            string
}

var promptCatalog = map[langdetect.Language]promptSet{
	langdetect.English: {
		appointmentUnavailable: "Online appointment booking is not available right now. Please call City Hall during business hours.",
		selectService:          "Which service would you like to book an appointment for?",
		invalidChoice:          "Sorry, I didn't recognize that choice. ",
		selectDate:             "Great, %s. Which date works for you?",
		noDates:                "There are no bookable dates for that service in the next two weeks. Please try again later.",
		selectTime:             "What time on %s works for you?",
		noSlots:                "All time slots on that date are taken. Please pick another date.",
		slotTaken:              "Sorry, that time slot was just taken by someone else. ",
		collectInfo:            "Almost done. Please share your contact details as: Name, Email, Phone (for example: John Doe, john@email.com, 305-555-1234).",
		contactRetry:           "I couldn't read a name and email from that. Please use the format: Name, Email, Phone (for example: John Doe, john@email.com, 305-555-1234).",
		confirmAppointment:     "Please confirm your appointment: %s on %s at %s for %s. Reply yes to confirm or no to cancel.",
		appointmentCreated:     "Your appointment is confirmed. Your booking reference is %s. See you then!",
		requestUnavailable:     "Service request intake is not available right now. Please call City Hall during business hours.",
		collectDetails:         "Please describe the issue you'd like to report.",
		collectLocation:        "Where is this located? You can reply skip if it doesn't apply.",
		confirmRequest:         "Please confirm your report: %s. %q Location: %s. Reply yes to submit or no to cancel.",
		requestCreated:         "Your request has been submitted. Your ticket number is %s. The responsible department will act within %d hours.",
		persistFailed:          "Something went wrong saving your information. Please try again in a moment.",
		cancelled:              "Okay, I've cancelled that. Is there anything else I can help you with?",
		yesLabel:               "Yes",
		noLabel:                "No",
		notProvided:            "not provided",
	},
	langdetect.Spanish: {
		appointmentUnavailable: "La reserva de citas en línea no está disponible en este momento. Llame al ayuntamiento en horario laboral.",
		selectService:          "¿Para qué servicio desea reservar una cita?",
		invalidChoice:          "Lo siento, no reconocí esa opción. ",
		selectDate:             "Perfecto, %s. ¿Qué fecha le conviene?",
		noDates:                "No hay fechas disponibles para ese servicio en las próximas dos semanas. Inténtelo más tarde.",
		selectTime:             "¿A qué hora el %s le conviene?",
		noSlots:                "Todos los horarios de esa fecha están ocupados. Elija otra fecha.",
		slotTaken:              "Lo sentimos, ese horario acaba de ser reservado por otra persona. ",
		collectInfo:            "Casi listo. Comparta sus datos de contacto así: Nombre, Correo, Teléfono (por ejemplo: Juan Pérez, juan@email.com, 305-555-1234).",
		contactRetry:           "No pude leer un nombre y un correo. Use el formato: Nombre, Correo, Teléfono (por ejemplo: Juan Pérez, juan@email.com, 305-555-1234).",
		confirmAppointment:     "Confirme su cita: %s el %s a las %s para %s. Responda sí para confirmar o no para cancelar.",
		appointmentCreated:     "Su cita está confirmada. Su número de reserva es %s. ¡Hasta pronto!",
		requestUnavailable:     "La recepción de solicitudes no está disponible en este momento. Llame al ayuntamiento en horario laboral.",
		collectDetails:         "Describa el problema que desea reportar.",
		collectLocation:        "¿Dónde se encuentra? Puede responder omitir si no aplica.",
		confirmRequest:         "Confirme su reporte: %s. %q Ubicación: %s. Responda sí para enviar o no para cancelar.",
		requestCreated:         "Su solicitud ha sido enviada. Su número de ticket es %s. El departamento responsable actuará dentro de %d horas.",
		persistFailed:          "Ocurrió un error al guardar su información. Inténtelo de nuevo en un momento.",
		cancelled:              "De acuerdo, lo he cancelado. ¿Puedo ayudarle con algo más?",
		yesLabel:               "Sí",
		noLabel:                "No",
		notProvided:            "no proporcionado",
	},
	langdetect.Creole: {
		appointmentUnavailable: "Rezèvasyon randevou sou entènèt pa disponib kounye a. Tanpri rele Meri a pandan lè travay.",
		selectService:          "Pou ki sèvis ou ta renmen pran yon randevou?",
		invalidChoice:          "Padon, mwen pa rekonèt chwa sa a. ",
		selectDate:             "Trè byen, %s. Ki dat ki bon pou ou?",
		noDates:                "Pa gen dat disponib pou sèvis sa a nan de semèn kap vini yo. Tanpri eseye pita.",
		selectTime:             "Ki lè nan %s ki bon pou ou?",
		noSlots:                "Tout orè nan dat sa a pran. Tanpri chwazi yon lòt dat.",
		slotTaken:              "Padon, yon lòt moun fèk pran orè sa a. ",
		collectInfo:            "Prèske fini. Tanpri bay enfòmasyon kontak ou konsa: Non, Imèl, Telefòn (pa egzanp: Jan Batis, jan@email.com, 305-555-1234).",
		contactRetry:           "Mwen pa t ka li yon non ak yon imèl. Tanpri itilize fòma sa a: Non, Imèl, Telefòn (pa egzanp: Jan Batis, jan@email.com, 305-555-1234).",
		confirmAppointment:     "Tanpri konfime randevou ou: %s nan %s a %s pou %s. Reponn wi pou konfime oswa non pou anile.",
		appointmentCreated:     "Randevou ou konfime. Nimewo rezèvasyon ou se %s. Na wè!",
		requestUnavailable:     "Resepsyon demann pa disponib kounye a. Tanpri rele Meri a pandan lè travay.",
		collectDetails:         "Tanpri dekri pwoblèm ou vle rapòte a.",
		collectLocation:        "Ki kote sa ye? Ou ka reponn sote si sa pa aplike.",
		confirmRequest:         "Tanpri konfime rapò ou: %s. %q Kote: %s. Reponn wi pou soumèt oswa non pou anile.",
		requestCreated:         "Demann ou soumèt. Nimewo tikè ou se %s. Depatman responsab la ap aji nan %d èdtan.",
		persistFailed:          "Gen yon erè pandan nou tap anrejistre enfòmasyon ou. Tanpri eseye ankò nan yon moman.",
		cancelled:              "Oke, mwen anile sa. Èske mwen ka ede ou ak yon lòt bagay?",
		yesLabel:               "Wi",
		noLabel:                "Non",
		notProvided:            "pa bay",
	},
}

func promptsFor(lang langdetect.Language) promptSet {
	if p, ok := promptCatalog[lang]; ok {
		return p
	}
	return promptCatalog[langdetect.English]
}

// CancelAck returns the localized cancellation acknowledgement. The turn
// router uses it when a cancel command clears a workflow.
func CancelAck(lang langdetect.Language) string {
	return promptsFor(lang).cancelled
}

var yesWords = []string{"yes", "y", "si", "sí", "wi", "confirm", "confirmar", "konfime", "ok"}
var noWords = []string{"no", "n", "non", "nope"}

func isYes(input string) bool { return matchWord(input, yesWords) }
func isNo(input string) bool  { return matchWord(input, noWords) }

func matchWord(input string, words []string) bool {
	lower := normalizeAnswer(input)
	for _, w := range words {
		if lower == w {
			return true
		}
	}
	return false
}
