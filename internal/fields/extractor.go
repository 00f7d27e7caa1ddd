package fields

import (
	"context"
	"errors"
	"strconv"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
	"github.com/dmitrijs2005/fieldsync/internal/logging"
)

// Target selects which id prefixes a list of custom fields is filed under.
type Target struct {
	Custom FieldType
	Raw    FieldType
}

var (
	MemberTarget  = Target{Custom: TypeCF, Raw: TypeCFRaw}
	ContactTarget = Target{Custom: TypeContactCF, Raw: TypeContactCFRaw}
)

// Extractor flattens member records into catalogue fragments.
type Extractor struct {
	resolver       LabelResolver
	consentFieldID string
	log            logging.Logger
}

// NewExtractor builds an Extractor. consentFieldID may be empty, in which
// case no consent entry is produced.
func NewExtractor(r LabelResolver, consentFieldID string, log logging.Logger) *Extractor {
	return &Extractor{resolver: r, consentFieldID: consentFieldID, log: log}
}

// Extract files every raw field under target. Select fields get their option
// labels as example, or the option ids when the labels cannot be resolved;
// the ids are also kept under the raw prefix.
func (e *Extractor) Extract(ctx context.Context, raw []apiclient.RawCustomField, target Target, token string) Catalogue {
	out := Catalogue{}

	for _, f := range raw {
		key := strconv.Itoa(f.CustomFieldID)
		id := FieldID(target.Custom, key)

		if len(f.SelectedOptions) == 0 {
			ex := NullExample()
			if f.Value != nil {
				ex = TextExample(*f.Value)
			}
			out[id] = NewEntry(id, target.Custom, ex)
			continue
		}

		ids := optionIDs(f.SelectedOptions)
		ex := ListExample(ids)
		labels, err := e.resolver.ResolveOptionLabels(ctx, f.CustomFieldID, f.SelectedOptions, token)
		switch {
		case err == nil:
			ex = ListExample(labels)
		case errors.Is(err, context.Canceled):
			e.log.Warn(ctx, "option resolution cancelled", "field", id)
		default:
			e.log.Debug(ctx, "option labels unresolved, using ids", "field", id, "error", err)
		}
		out[id] = NewEntry(id, target.Custom, ex)

		rawID := FieldID(target.Raw, key)
		out[rawID] = NewEntry(rawID, target.Raw, ListExample(ids))
	}
	return out
}

func optionIDs(options []apiclient.OptionRef) []string {
	ids := make([]string, len(options))
	for i, o := range options {
		ids[i] = o.ID()
	}
	return ids
}

// ExtractMember returns every field found on one member: its scalar
// attributes, its contact details, both custom field lists and, when
// configured, the consent flag.
func (e *Extractor) ExtractMember(ctx context.Context, m apiclient.Member, token string) Catalogue {
	out := Catalogue{}

	for k, v := range m.Attributes {
		id := FieldID(TypeMember, k)
		out[id] = NewEntry(id, TypeMember, TextExample(v))
	}
	for k, v := range m.Contact {
		id := FieldID(TypeContact, k)
		out[id] = NewEntry(id, TypeContact, TextExample(v))
	}

	out.Union(e.Extract(ctx, m.CustomFields, MemberTarget, token))
	out.Union(e.Extract(ctx, m.ContactCustomFields, ContactTarget, token))

	if e.consentFieldID != "" {
		id := FieldID(TypeConsent, e.consentFieldID)
		all := append(append([]apiclient.RawCustomField{}, m.CustomFields...), m.ContactCustomFields...)
		out[id] = NewEntry(id, TypeConsent, TextExample(strconv.FormatBool(HasConsent(all, e.consentFieldID))))
	}
	return out
}
