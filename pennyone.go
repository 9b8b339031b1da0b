package pennyone

import "github.com/jward/pennyone/internal/model"

// Version is written into every compiled graph.
const Version = model.GraphVersion
