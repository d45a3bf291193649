package constants

// Fixed source names for the collective pipeline. Step order is not
// user-definable: list first, then fetch.
const (
	SourceListDocuments = "FILENET_LIST_DOCUMENTOS"
	SourceGetDocument   = "FILENET_GET_DOCUMENTO"
)

// CollectivePipelineOrder is the only source sequence the collective
// orchestrator will execute; configured sources outside it are ignored.
var CollectivePipelineOrder = []string{SourceListDocuments, SourceGetDocument}

// Placeholder names resolved from runtime context.
const (
	PlaceholderConsecutivo    = "consecutivo"
	PlaceholderDocumentListID = "id_doc_lista_riesgos"
)

// VariableDocumentListID is the configured variable whose extracted value is
// threaded into the second pipeline step's placeholders.
const VariableDocumentListID = "ID_DOC_LISTA_RIESGOS"

// Risk record field names as emitted by extraction and the model backend.
const (
	FieldDocumentType   = "TIPO_DOCUMENTO"
	FieldDocumentNumber = "NUMERO_DOCUMENTO"
	FieldPlate          = "PLACA"
	FieldName           = "NOMBRE"
)

// AttachmentField is the response key carrying the base64 spreadsheet.
const AttachmentField = "adjunto"

// RisksField is the list-valued key the model backend must emit.
const RisksField = "riesgos"
