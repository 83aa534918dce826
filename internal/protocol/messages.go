package protocol

import "encoding/json"

// Estado values of the outbound envelope
const (
	EstadoExito       = "exito"
	EstadoError       = "error"
	EstadoLoginOK     = "login_ok"
	EstadoLoginFail   = "login_fail"
	EstadoGetProjects = "getprojects_response"
)

// Shared protocol-level error messages. Handler-specific messages live with
// their handlers.
const (
	MsgInvalidJSON    = "Mensaje JSON inválido."
	MsgMissingAction  = "Falta campo 'accion' en el mensaje."
	MsgNoSession      = "No hay una sesión activa para la conexión."
	MsgInternalError  = "Error interno en el servidor."
	MsgNotAuthorized  = "No autorizado."
	MsgUnknownActionF = "Acción desconocida: %s"
)

// Envelope is the canonical response wrapper sent back to the client
type Envelope struct {
	Estado string `json:"estado"`
	Datos  any    `json:"datos"`
}

// ErrorResponse builds an error envelope
func ErrorResponse(message string) *Envelope {
	return &Envelope{Estado: EstadoError, Datos: message}
}

// SuccessResponse builds a success envelope carrying a message string
func SuccessResponse(message string) *Envelope {
	return &Envelope{Estado: EstadoExito, Datos: message}
}

// DataResponse builds a success envelope carrying arbitrary data such as a
// list of rows or a DTO
func DataResponse(datos any) *Envelope {
	return &Envelope{Estado: EstadoExito, Datos: datos}
}

// Response builds an envelope with an explicit estado
func Response(estado string, datos any) *Envelope {
	return &Envelope{Estado: estado, Datos: datos}
}

// Encode serializes an envelope to its wire form. It has no knowledge of
// which handler produced the envelope.
func Encode(env *Envelope) (string, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
