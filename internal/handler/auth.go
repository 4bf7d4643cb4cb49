package handler

import (
	dctx "context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/earnzy/earnzy/internal/config"
	"github.com/earnzy/earnzy/internal/context"
	"github.com/earnzy/earnzy/internal/errHandler"
	"github.com/earnzy/earnzy/internal/helper"
	"github.com/earnzy/earnzy/internal/repository"
	"github.com/earnzy/earnzy/internal/request"
	"github.com/earnzy/earnzy/internal/response"
	"github.com/earnzy/earnzy/internal/smtp"
	"github.com/earnzy/earnzy/internal/stream"
	"github.com/earnzy/earnzy/internal/validator"
	"github.com/earnzy/earnzy/internal/wallet"

	"github.com/cradoe/gopass"
	"github.com/pascaldekloe/jwt"
)

const (
	UserActivityLogRegistrationDescription  = "Created an account"
	UserActivityLogLoginDescription         = "Logged in"
	UserActivityLogFailedLoginDescription   = "Failed login attempt"
	UserActivityLogLockedAccountDescription = "Account locked after consecutive failed logins"
	UserActivityLogLogoutDescription        = "Logged out"
)

const referralCompletedTopic = "referral.completed"

type AuthHandler struct {
	DB         repository.Database
	Engine     *wallet.Engine
	ErrHandler *errHandler.ErrorHandler
	Helper     *helper.HelperRepository
	Mailer     smtp.MailerInterface
	Kafka      *stream.KafkaStream
	Config     *config.Config
}

func NewAuthHandler(handler *AuthHandler) *AuthHandler {
	return &AuthHandler{
		DB:         handler.DB,
		Engine:     handler.Engine,
		ErrHandler: handler.ErrHandler,
		Helper:     handler.Helper,
		Mailer:     handler.Mailer,
		Kafka:      handler.Kafka,
		Config:     handler.Config,
	}
}

// ReferralSignup is the event produced when a new account arrives carrying a
// valid referral code. The referral worker credits both parties from it.
type ReferralSignup struct {
	ReferrerUserID string `json:"referrer_user_id"`
	ReferredUserID string `json:"referred_user_id"`
	ReferralCode   string `json:"referral_code"`
}

// New user registration involves input validation and checking that the email
// has not already been used. The user row is the only synchronous write; the
// wallet is created lazily, and any referral credit is settled by a worker so
// signup never waits on it.
func (h *AuthHandler) HandleAuthRegister(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email        string              `json:"email"`
		Password     string              `json:"password"`
		ReferralCode string              `json:"referral_code"`
		Validator    validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	// we need to validate the password to make sure it meets the minimum requirements
	// the Validate function returns a slice of errors if the password does not meet the requirements
	_, errs := gopass.Validate(input.Password)

	if errs != nil {
		// return any errors found before we check the other fields
		// It's important that users have a strong password
		h.ErrHandler.FailedValidation(w, r, errs)
		return
	}

	_, found, err := h.DB.User().GetByEmail(input.Email)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")

	// we want to make sure no two users have the same email
	input.Validator.Check(!found, "Email is already in use")

	// The referral code is optional, but when given it must be well-formed
	// and belong to an existing wallet.
	var referrerWallet *repository.Wallet
	if input.ReferralCode != "" {
		input.Validator.Check(validator.Matches(input.ReferralCode, validator.RgxReferralCode), "Referral code is not valid")

		if !input.Validator.HasErrors() {
			referrer, found, err := h.DB.Wallet().FindByReferralCode(input.ReferralCode)
			if err != nil {
				h.ErrHandler.ServerError(w, r, err)
				return
			}
			input.Validator.Check(found, "Referral code is not recognised")
			referrerWallet = referrer
		}
	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	hashedPassword, err := gopass.Hash(input.Password)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	createdUser := &repository.User{
		Email:          input.Email,
		HashedPassword: hashedPassword,
	}

	userID, err := h.DB.User().Insert(createdUser, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.DB.Activity().Insert(&repository.ActivityLog{
			UserID:      userID,
			Entity:      repository.ActivityLogUserEntity,
			EntityId:    userID,
			Description: UserActivityLogRegistrationDescription,
		})

		if err != nil {
			log.Printf("Error logging user registration action: %v", err)
			return err
		}

		return nil
	})

	// Create the wallet up front so the referral code is ready to share.
	// A failure here is tolerated, the next wallet read creates it instead.
	h.Helper.BackgroundTask(r, func() error {
		_, err := h.Engine.InitializeWallet(dctx.Background(), userID)
		if err != nil {
			log.Printf("Error initializing wallet after registration: %v", err)
			return err
		}
		return nil
	})

	if referrerWallet != nil {
		signup := &ReferralSignup{
			ReferrerUserID: referrerWallet.UserID,
			ReferredUserID: userID,
			ReferralCode:   input.ReferralCode,
		}

		jsonMessage, err := json.Marshal(signup)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}

		// Produce message so the referral worker can credit both parties
		go h.Kafka.ProduceMessage(referralCompletedTopic, string(jsonMessage))
	}

	h.Helper.BackgroundTask(r, func() error {
		emailData := h.Helper.NewEmailData()
		emailData["Email"] = createdUser.Email

		err := h.Mailer.Send(createdUser.Email, emailData, "welcome.tmpl")
		if err != nil {
			log.Printf("Error sending welcome email: %v", err)
			return err
		}

		return nil
	})

	message := "Account created successfully"

	err = response.JSONCreatedResponse(w, nil, message)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}

}

func (h *AuthHandler) HandleAuthLogin(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Email     string              `json:"email"`
		Password  string              `json:"password"`
		Validator validator.Validator `json:"-"`
	}

	err := request.DecodeJSON(w, r, &input)
	if err != nil {
		h.ErrHandler.BadRequest(w, r, err)
		return
	}

	user, found, err := h.DB.User().GetByEmail(input.Email)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	input.Validator.Check(validator.NotBlank(input.Email), "Email is required")
	input.Validator.Check(validator.IsEmail(input.Email), "Must be a valid email address")
	input.Validator.Check(found, "Incorrect email/password")

	if found {
		passwordMatches, err := gopass.ComparePasswordAndHash(input.Password, user.HashedPassword)
		if err != nil {
			h.ErrHandler.ServerError(w, r, err)
			return
		}

		input.Validator.Check(validator.NotBlank(input.Password), "Password is required")
		input.Validator.Check(passwordMatches, "Incorrect email/password")

		if !passwordMatches {
			h.Helper.BackgroundTask(r, func() error {
				_, err := h.DB.Activity().Insert(&repository.ActivityLog{
					UserID:      user.ID,
					Entity:      repository.ActivityLogUserEntity,
					EntityId:    user.ID,
					Description: UserActivityLogFailedLoginDescription,
				})

				if err != nil {
					log.Printf("Error logging failed login action: %v", err)
					return err
				}

				return nil
			})

			//  if password is not correct, log that, and lock the account after 3 consecutive failed attempts
			count := h.DB.Activity().CountConsecutiveFailedLoginAttempts(user.ID, UserActivityLogFailedLoginDescription)
			// check if we already have 2 failed login attempts before this one.
			if count >= 2 {
				h.Helper.BackgroundTask(r, func() error {
					err := h.DB.User().Lock(user.ID)

					if err != nil {
						log.Printf("Error locking account due to failed login action: %v", err)
						return err
					}

					return nil
				})

				h.Helper.BackgroundTask(r, func() error {
					_, err := h.DB.Activity().Insert(&repository.ActivityLog{
						UserID:      user.ID,
						Entity:      repository.ActivityLogUserEntity,
						EntityId:    user.ID,
						Description: UserActivityLogLockedAccountDescription,
					})

					if err != nil {
						log.Printf("Error logging account lock action: %v", err)
						return err
					}

					return nil
				})

				h.ErrHandler.FailedValidation(w, r, []string{"Account has been locked. Please contact support"})
				return
			}
		}

	}

	if input.Validator.HasErrors() {
		h.ErrHandler.FailedValidation(w, r, input.Validator.Errors)
		return
	}

	// check that account is active
	if user.Status != repository.UserAccountActiveStatus {
		message := "Account has been locked. Please contact support"

		response.JSONErrorResponse(w, nil, message, http.StatusForbidden, nil)
		return
	}

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.DB.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogUserEntity,
			EntityId:    user.ID,
			Description: UserActivityLogLoginDescription,
		})

		if err != nil {
			log.Printf("Error logging successful login action: %v", err)
			return err
		}

		return nil
	})

	// Warm the wallet mirror for the new session.
	h.Helper.BackgroundTask(r, func() error {
		return h.Engine.HandleAuthEvent(dctx.Background(), wallet.AuthEvent{
			Type:   wallet.AuthEventSignedIn,
			UserID: user.ID,
		})
	})

	var claims jwt.Claims
	claims.Subject = user.ID

	expiry := time.Now().Add(24 * time.Hour)
	claims.Issued = jwt.NewNumericTime(time.Now())
	claims.NotBefore = jwt.NewNumericTime(time.Now())
	claims.Expires = jwt.NewNumericTime(expiry)

	claims.Issuer = h.Config.BaseURL
	claims.Audiences = []string{h.Config.BaseURL}

	jwtBytes, err := claims.HMACSign(jwt.HS256, []byte(h.Config.Jwt.SecretKey))
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
		return
	}

	data := map[string]string{
		"auth_token":   string(jwtBytes),
		"token_expiry": expiry.Format(time.RFC3339),
	}
	message := "Login successful"
	err = response.JSONOkResponse(w, data, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}

}

// HandleAuthLogout drops the user's wallet mirror. The JWT itself stays valid
// until expiry; the client discards it.
func (h *AuthHandler) HandleAuthLogout(w http.ResponseWriter, r *http.Request) {
	user := context.ContextGetAuthenticatedUser(r)

	h.Engine.HandleAuthEvent(r.Context(), wallet.AuthEvent{
		Type:   wallet.AuthEventSignedOut,
		UserID: user.ID,
	})

	h.Helper.BackgroundTask(r, func() error {
		_, err := h.DB.Activity().Insert(&repository.ActivityLog{
			UserID:      user.ID,
			Entity:      repository.ActivityLogUserEntity,
			EntityId:    user.ID,
			Description: UserActivityLogLogoutDescription,
		})

		if err != nil {
			log.Printf("Error logging logout action: %v", err)
			return err
		}

		return nil
	})

	message := "Logged out successfully"
	err := response.JSONOkResponse(w, nil, message, nil)
	if err != nil {
		h.ErrHandler.ServerError(w, r, err)
	}
}
