package builder

import (
	"github.com/Aman-CERP/fieldcrawl/internal/content"
	"github.com/Aman-CERP/fieldcrawl/internal/policy"
)

// SkipReason explains why a field was not written to the document.
type SkipReason string

const (
	// ReasonTemplateExcluded: the item is a template and the field's name or
	// id is in the template exclusion list.
	ReasonTemplateExcluded SkipReason = "template-excluded"
	// ReasonMediaExcluded: the item is a media item and the field's name is
	// in the media exclusion list. Ids are not consulted.
	ReasonMediaExcluded SkipReason = "media-excluded"
	// ReasonGloballyExcluded: the field's name or id is in the global
	// exclusion list.
	ReasonGloballyExcluded SkipReason = "globally-excluded"
	// ReasonNotIncluded: an include list is in force and the field is not
	// on it.
	ReasonNotIncluded SkipReason = "not-included"
)

// Decision is the outcome of the admission check for one field.
type Decision struct {
	Admitted bool
	Reason   SkipReason
}

// Admit decides whether f is written to the document for it under p.
// Exclusions are evaluated first, in template, media, global order; an
// excluded field is never admitted even when it is also included.
func Admit(it content.Item, f content.Field, p *policy.Policy) Decision {
	if it.IsTemplate() && !p.ExcludedTemplate.Empty() && p.ExcludedTemplate.ContainsField(f) {
		return Decision{Reason: ReasonTemplateExcluded}
	}
	if it.IsMedia() && !p.ExcludedMedia.Empty() && p.ExcludedMedia.ContainsName(f) {
		return Decision{Reason: ReasonMediaExcluded}
	}
	if p.Excluded.ContainsField(f) {
		return Decision{Reason: ReasonGloballyExcluded}
	}

	if p.IndexAllFields {
		return Decision{Admitted: true}
	}
	if p.Included.ContainsField(f) {
		return Decision{Admitted: true}
	}
	return Decision{Reason: ReasonNotIncluded}
}

// describe renders the skip message for a rejected field.
func describe(f content.Field, reason SkipReason) string {
	var why string
	switch reason {
	case ReasonTemplateExcluded:
		why = "template field was excluded"
	case ReasonMediaExcluded:
		why = "media field was excluded"
	case ReasonGloballyExcluded:
		why = "field was excluded"
	case ReasonNotIncluded:
		why = "field was not included"
	default:
		why = string(reason)
	}
	return "skipping field id:" + f.ID().String() + ", name:" + f.Name() + ", typeKey:" + f.TypeKey() + " - " + why
}
