package docstore

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type (
	vaultDoc struct {
		ID        primitive.ObjectID `bson:"_id"`
		OwnerID   int64              `bson:"owner_id"`
		Title     string             `bson:"title"`
		Currency  string             `bson:"currency"`
		Active    bool               `bson:"active"`
		CreatedAt time.Time          `bson:"created_at"`
	}

	periodDoc struct {
		ID        primitive.ObjectID `bson:"_id"`
		Key       string             `bson:"key"`
		CreatedAt time.Time          `bson:"created_at"`
	}

	submissionDoc struct {
		ID        primitive.ObjectID `bson:"_id"`
		PeriodID  primitive.ObjectID `bson:"period_id"`
		VaultID   primitive.ObjectID `bson:"vault_id"`
		Amount    float64            `bson:"amount"`
		CreatedAt time.Time          `bson:"created_at"`
		UpdatedAt time.Time          `bson:"updated_at"`
	}
)
