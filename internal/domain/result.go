package domain

// CertificateThreshold is the minimum percentage for a certificate.
const CertificateThreshold = 80.0

// CertificateEligible is a display rule evaluated on the recorded result.
func CertificateEligible(def QuizDefinition, result *Result) bool {
	return result != nil && def.Features.CertificateEligible && result.Percentage >= CertificateThreshold
}
