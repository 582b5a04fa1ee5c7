package api

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/keywheel/go-keywheel-server/services"
	"github.com/keywheel/go-keywheel-server/types"
)

type RotationApi struct {
	manager  *services.RotationManager
	validate *validator.Validate
}

func NewRotationApi(manager *services.RotationManager) *RotationApi {
	return &RotationApi{
		manager:  manager,
		validate: validator.New(),
	}
}

// Rotate method
// @Summary Trigger a key rotation towards a peer
// @Description Generates a fresh keypair, delivers the signed rotation packet and updates the peer record on success
// @Tags Rotation
// @Param rotation body types.InputRotate true "peer and own public key"
// @Success 200 {object} types.OutputRotate
// @Failure 502 {object} ApiError "packet delivery failed"
// @Accept json
// @Produce json
// @Router /api/v1/rotation [post]
func (ra *RotationApi) Rotate(c *gin.Context) {
	var input types.InputRotate
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := ra.validate.Struct(&input); err != nil {
		msg := ValidatorErrorToUser(err.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	if err := ra.manager.Rotate(c.Request.Context(), input.Peer, input.OwnPublicKey); err != nil {
		if errors.Is(err, types.ErrTransport) {
			ApiErrorf(c, http.StatusBadGateway, "failed to deliver rotation packet: %s", err)
			return
		}
		ApiErrorf(c, http.StatusInternalServerError, "rotation failed: %s", err)
		return
	}
	c.JSON(http.StatusOK, types.OutputRotate{Success: true})
}

// Rotate overdue method
// @Summary Re-rotate all overdue peers
// @Description Runs the externally triggered remediation: every overdue record gets a fresh rotation
// @Tags Rotation
// @Param rotation body types.InputRotateOverdue true "own public key"
// @Success 200 {object} types.OutputRotateOverdue
// @Accept json
// @Produce json
// @Router /api/v1/rotation/overdue [post]
func (ra *RotationApi) RotateOverdue(c *gin.Context) {
	var input types.InputRotateOverdue
	if err := c.ShouldBindJSON(&input); err != nil {
		ApiErrorf(c, http.StatusBadRequest, "invalid input")
		return
	}
	if err := ra.validate.Struct(&input); err != nil {
		msg := ValidatorErrorToUser(err.(validator.ValidationErrors))
		ApiErrorf(c, http.StatusBadRequest, "%s", msg)
		return
	}

	rotated, err := ra.manager.RotateOverdue(c.Request.Context(), input.OwnPublicKey)
	if err != nil && rotated == 0 {
		ApiErrorf(c, http.StatusBadGateway, "overdue rotation failed: %s", err)
		return
	}
	c.JSON(http.StatusOK, types.OutputRotateOverdue{Rotated: rotated})
}

// Rotation status method
// @Summary Rotation status for a public key
// @Description Returns overdue flag and days until the rotation deadline
// @Tags Rotation
// @Param publicKey path string true "peer public key (url-escaped base64)"
// @Success 200 {object} types.OutputRotationStatus
// @Failure 404 {object} ApiError "no record for public key"
// @Produce json
// @Router /api/v1/rotation/status/{publicKey} [get]
func (ra *RotationApi) RotationStatus(c *gin.Context) {
	publicKey := c.Param("publicKey")
	if unescaped, err := url.PathUnescape(publicKey); err == nil {
		publicKey = unescaped
	}
	if publicKey == "" {
		ApiErrorf(c, http.StatusBadRequest, "invalid public key")
		return
	}

	record, found := ra.manager.Record(publicKey)
	if !found {
		ApiErrorf(c, http.StatusNotFound, "no rotation record for key")
		return
	}
	c.JSON(http.StatusOK, types.OutputRotationStatus{
		PublicKey:         publicKey,
		Overdue:           ra.manager.IsOverdue(publicKey),
		DaysUntilRotation: ra.manager.DaysUntilRotation(publicKey),
		Record:            &record,
	})
}

// List rotation records
// @Summary List all rotation records
// @Description Returns every record in the map, including retained old-lineage entries
// @Tags Rotation
// @Success 200 {object} []types.RotationRecord
// @Produce json
// @Router /api/v1/rotation/records [get]
func (ra *RotationApi) ListRotationRecords(c *gin.Context) {
	c.JSON(http.StatusOK, ra.manager.Records())
}
