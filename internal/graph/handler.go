package graph

import (
	"encoding/json"
	"errors"
	"net/http"

	"livraison-be/internal/logger"
	"livraison-be/internal/transport"
	"livraison-be/internal/utils"

	"github.com/graphql-go/graphql"
	"go.uber.org/zap"
)

type request struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

const maxQueryBytes = 1 << 16

// NewHandler serves POST /query.
func NewHandler(schema graphql.Schema) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req request
		err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBytes)).Decode(&req)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteJSONError(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if err != nil || req.Query == "" {
			utils.WriteJSONError(w, "invalid GraphQL request", http.StatusBadRequest)
			return
		}

		ctx := transport.WithHTTP(r.Context(), r, w)
		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        ctx,
		})

		if result.HasErrors() {
			logger.FromCtx(ctx).Info("graphql query returned errors",
				zap.String("operation", req.OperationName),
				zap.Int("errors", len(result.Errors)),
			)
		}

		// errors travel in the body with a 200, as GraphQL clients expect
		utils.WriteJSON(w, http.StatusOK, result)
	}
}
