package service

import (
	"fmt"
	"time"

	"github.com/eduotp/eduotp/internal/models"
)

// smsTemplates binds each purpose to its message text. Dispatch is a table
// lookup over the closed purpose set rather than string branching.
var smsTemplates = map[models.Purpose]string{
	models.PurposeLogin:         "Your login OTP is %s. Valid for %d minutes. Do not share with anyone.",
	models.PurposeRegistration:  "Your registration OTP is %s. Valid for %d minutes. Do not share with anyone.",
	models.PurposePasswordReset: "Your password reset OTP is %s. Valid for %d minutes. Do not share with anyone.",
	models.PurposeVerification:  "Your verification OTP is %s. Valid for %d minutes. Do not share with anyone.",
}

const smsTemplateDefault = "Your OTP is %s. Valid for %d minutes. Do not share with anyone."

// SMSMessage renders the delivery text for a code issued under the given
// purpose. Unknown purposes fall back to the generic template.
func SMSMessage(purpose models.Purpose, code string, ttl time.Duration) string {
	tmpl, ok := smsTemplates[purpose]
	if !ok {
		tmpl = smsTemplateDefault
	}
	return fmt.Sprintf(tmpl, code, int(ttl.Minutes()))
}
