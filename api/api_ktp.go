package api

import (
	"encoding/base64"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/keywheel/go-keywheel-server/services"
	"github.com/keywheel/go-keywheel-server/types"
)

// KtpApi receives rotation packets from peer servers (Keywheel Transfer
// Protocol)
type KtpApi struct {
	manager  *services.RotationManager
	validate *validator.Validate
}

func NewKtpApi(manager *services.RotationManager) *KtpApi {
	return &KtpApi{
		manager:  manager,
		validate: validator.New(),
	}
}

// Receive rotation method
// @Summary Receive a rotation packet from a peer server
// @Description Validates the packet (decode, digest, sender identity) and updates the record under the new public key
// @Tags KTP
// @Param envelope body types.KTPEnvelope true "sender key and base64 CBOR packet"
// @Success 200 {object} types.OutputRotate
// @Failure 400 {object} ApiError "malformed or tampered packet"
// @Failure 401 {object} ApiError "sender identity mismatch"
// @Accept json
// @Produce json
// @Router /api/v1/ktp/rotation [post]
func (ka *KtpApi) ReceiveRotation(c *gin.Context) {
	var envelope types.KTPEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid envelope")
		return
	}
	if err := ka.validate.Struct(&envelope); err != nil {
		msg := ValidatorErrorToUser(err.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	packetBytes, decErr := base64.StdEncoding.DecodeString(envelope.PacketBase64)
	if decErr != nil {
		ApiErrorf(c, http.StatusBadRequest, "packet is not valid base64")
		return
	}

	if err := ka.manager.HandleIncoming(c.Request.Context(), packetBytes, envelope.SenderKey); err != nil {
		if errors.Is(err, types.ErrIdentityMismatch) {
			ApiErrorf(c, http.StatusUnauthorized, "%s", err)
			return
		}
		if errors.Is(err, types.ErrPacketDecode) || errors.Is(err, types.ErrPacketSignature) {
			ApiErrorf(c, http.StatusBadRequest, "%s", err)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "failed to process rotation packet: %s", err)
		return
	}
	c.JSON(http.StatusOK, types.OutputRotate{Success: true})
}
