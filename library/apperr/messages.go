package apperr

import "github.com/Laisky/agency-site/library/i18n"

var messages = map[Category]map[i18n.Lang]string{
	CategoryNetwork: {
		i18n.EN: "Network problem, please try again.",
		i18n.AR: "مشكلة في الشبكة، يرجى المحاولة مرة أخرى.",
	},
	CategoryAuth: {
		i18n.EN: "Please sign in again.",
		i18n.AR: "يرجى تسجيل الدخول مرة أخرى.",
	},
	CategoryValidation: {
		i18n.EN: "Some of the submitted data is invalid.",
		i18n.AR: "بعض البيانات المرسلة غير صالحة.",
	},
	CategoryDatabase: {
		i18n.EN: "We could not save or load your data.",
		i18n.AR: "تعذر حفظ البيانات أو تحميلها.",
	},
	CategorySecurity: {
		i18n.EN: "You are not allowed to do this.",
		i18n.AR: "غير مسموح لك بتنفيذ هذا الإجراء.",
	},
	CategoryNotFound: {
		i18n.EN: "The requested item was not found.",
		i18n.AR: "العنصر المطلوب غير موجود.",
	},
	CategoryRateLimit: {
		i18n.EN: "Too many requests, please slow down.",
		i18n.AR: "طلبات كثيرة جدًا، يرجى الانتظار قليلًا.",
	},
	CategoryUnknown: {
		i18n.EN: "Something went wrong.",
		i18n.AR: "حدث خطأ ما.",
	},
}

// Message returns the localized user facing text of a category
func Message(c Category, lang i18n.Lang) string {
	m, ok := messages[c]
	if !ok {
		m = messages[CategoryUnknown]
	}

	if s, ok := m[lang]; ok {
		return s
	}

	return m[i18n.EN]
}
