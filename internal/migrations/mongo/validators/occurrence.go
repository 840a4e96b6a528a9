package validators

import "go.mongodb.org/mongo-driver/bson"

var OccurrenceValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"owner", "availability_ids", "start", "end"},
		"properties": bson.M{
			"owner": ownerSchema,
			"availability_ids": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items":    uuidSchema,
			},
			"start": bson.M{"bsonType": "date"},
			"end":   bson.M{"bsonType": "date"},
		},
	},
}
