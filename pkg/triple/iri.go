package triple

// Namespace is the vocabulary prefix for graphtriple-specific IRIs.
const Namespace = "http://graphtriple.dev#"

// Reserved predicate IRIs.
const (
	// RDFType asserts the concept type of a vertex.
	RDFType = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

	// ConceptTypeIRI is the property that stores a vertex's concept type. It
	// is accepted as an alias of RDFType on input.
	ConceptTypeIRI = Namespace + "conceptType"
)

const xsd = "http://www.w3.org/2001/XMLSchema#"

// Typed-literal IRIs. These exact strings appear after ^^ on the wire.
const (
	TypeString   = xsd + "string"
	TypeInteger  = xsd + "integer"
	TypeInt      = xsd + "int"
	TypeDouble   = xsd + "double"
	TypeBoolean  = xsd + "boolean"
	TypeDate     = xsd + "date"
	TypeDateTime = xsd + "dateTime"
	TypeYear     = xsd + "gYear"
	TypeMonthDay = xsd + "gMonthDay"

	TypeCurrency                   = Namespace + "currency"
	TypeGeolocation                = Namespace + "geolocation"
	TypeDirectoryEntry             = Namespace + "directory/entity"
	TypeStreamingValue             = Namespace + "streamingPropertyValue"
	TypeStreamingValueInline       = Namespace + "streamingPropertyValueInline"
	TypeStreamingValueInlineBase64 = Namespace + "streamingPropertyValueInlineBase64"
)
